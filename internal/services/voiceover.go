package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/clients/elevenlabs"
	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// VoiceoverService synthesizes the full script as one voiceover track and
// stores it in the render bucket. All variants of a project share this single
// track.
type VoiceoverService interface {
	Synthesize(ctx context.Context, project *types.Project, sections []*types.Section) (string, error)
	ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
}

type voiceoverService struct {
	log    *logger.Logger
	tts    elevenlabs.Client
	bucket gcp.BucketService
}

func NewVoiceoverService(baseLog *logger.Logger, tts elevenlabs.Client, bucket gcp.BucketService) VoiceoverService {
	return &voiceoverService{
		log:    baseLog.With("service", "VoiceoverService"),
		tts:    tts,
		bucket: bucket,
	}
}

// Synthesize returns the storage key of the uploaded voiceover. TTS failures
// come back coded TTS_FAILED with the provider message intact so the operator
// can re-trigger with adjusted settings.
func (s *voiceoverService) Synthesize(ctx context.Context, project *types.Project, sections []*types.Section) (string, error) {
	if project == nil {
		return "", apperr.ErrInvalidArgument
	}
	if project.VoiceID == "" {
		return "", fmt.Errorf("%w: project has no voice selected", apperr.ErrInvalidArgument)
	}
	if len(sections) == 0 {
		return "", fmt.Errorf("%w: no sections to voice", apperr.ErrInvalidArgument)
	}

	var script strings.Builder
	for _, sec := range sections {
		line := strings.TrimSpace(sec.Text)
		if line == "" {
			continue
		}
		if script.Len() > 0 {
			script.WriteString("\n")
		}
		script.WriteString(line)
	}
	if script.Len() == 0 {
		return "", fmt.Errorf("%w: script text is empty", apperr.ErrInvalidArgument)
	}

	audio, err := s.tts.Synthesize(ctx, project.VoiceID, script.String(), elevenlabs.VoiceSettings{
		Stability:       project.VoiceStability,
		SimilarityBoost: project.VoiceSimilarity,
		Style:           project.VoiceStyle,
	})
	if err != nil {
		return "", apperr.WithCode(apperr.CodeTTSFailed, err)
	}

	key := fmt.Sprintf("voiceovers/%s/%s.mp3", project.ID, uuid.New())
	if err := s.bucket.UploadFile(ctx, gcp.BucketCategoryRender, key, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("upload voiceover: %w", err)
	}

	s.log.Info("Voiceover synthesized", "project_id", project.ID, "key", key, "bytes", len(audio))
	return key, nil
}

func (s *voiceoverService) ListVoices(ctx context.Context) ([]elevenlabs.Voice, error) {
	voices, err := s.tts.ListVoices(ctx)
	if err != nil {
		return nil, apperr.WithCode(apperr.CodeTTSFailed, err)
	}
	return voices, nil
}
