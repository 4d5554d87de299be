package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

type Speech interface {
	TranscribeGCS(ctx context.Context, gcsURI string, cfg SpeechConfig) (*SpeechResult, error)
	Close() error
}

type SpeechConfig struct {
	LanguageCode string
	Model        string
	UseEnhanced  bool

	EnableAutomaticPunctuation bool

	SampleRateHertz   int
	AudioChannelCount int

	Encoding speechpb.RecognitionConfig_AudioEncoding
}

// SpeechResult is the flattened transcript of one source video. DurationSeconds
// comes from the last recognized word's end offset, so silence trailing the
// speech is not counted.
type SpeechResult struct {
	Provider        string   `json:"provider"`
	SourceURI       string   `json:"source_uri,omitempty"`
	Transcript      string   `json:"transcript"`
	DurationSeconds float64  `json:"duration_seconds"`
	Warnings        []string `json:"warnings,omitempty"`
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	ctx := context.Background()
	opts := ClientOptionsFromEnv()

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &speechService{
		log:        slog,
		client:     c,
		maxRetries: 4,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeGCS(ctx context.Context, gcsURI string, cfg SpeechConfig) (*SpeechResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	rcfg := buildSpeechRecognitionConfig(gcsURI, cfg)
	req := &speechpb.LongRunningRecognizeRequest{
		Config: rcfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI}},
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize(gcs): %w", err)
	}

	return parseSpeechResponse("gcp_speech", gcsURI, resp), nil
}

func buildSpeechRecognitionConfig(gcsURI string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}

	enc := cfg.Encoding
	if enc == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		enc = inferSpeechEncoding(gcsURI)
	}

	return &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		UseEnhanced:                cfg.UseEnhanced,
		EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
		EnableWordTimeOffsets:      true,
		Encoding:                   enc,
		SampleRateHertz:            int32(max0(cfg.SampleRateHertz)),
		AudioChannelCount:          int32(max0(cfg.AudioChannelCount)),
	}
}

func inferSpeechEncoding(gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	ext := strings.ToLower(filepath.Ext(gcsURI))
	switch ext {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func parseSpeechResponse(provider string, sourceURI string, resp *speechpb.LongRunningRecognizeResponse) *SpeechResult {
	out := &SpeechResult{
		Provider:  provider,
		SourceURI: sourceURI,
	}

	if resp == nil || len(resp.Results) == 0 {
		return out
	}

	var full strings.Builder
	var lastEnd float64

	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))

		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			if end := durToSec(w.EndTime); end > lastEnd {
				lastEnd = end
			}
		}
	}

	out.Transcript = strings.TrimSpace(full.String())
	out.DurationSeconds = lastEnd
	return out
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (s *speechService) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func max0(x int) int {
	if x < 0 {
		return 0
	}
	return x
}
