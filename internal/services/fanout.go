package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lalocmtz/adbroll-backend/internal/clients/render"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
	"github.com/lalocmtz/adbroll-backend/internal/utils"
)

// FanoutService creates a project's variant rows and dispatches their render
// jobs. Dispatch is fire-and-forget: rows come back immediately in queued
// state and submissions proceed in the background. One variant's submission
// failing never touches its siblings; the failed variant is simply driven to
// its failed terminal state through the normal progress path.
type FanoutService interface {
	Dispatch(ctx context.Context, project *types.Project, sections []*types.Section) ([]*types.Variant, error)
}

type fanoutService struct {
	log         *logger.Logger
	variantRepo repos.VariantRepo
	assetRepo   repos.AssetRepo
	renderer    render.Client
	progress    ProgressService
	callbackURL string
	concurrency int
}

func NewFanoutService(
	baseLog *logger.Logger,
	variantRepo repos.VariantRepo,
	assetRepo repos.AssetRepo,
	renderer render.Client,
	progress ProgressService,
) FanoutService {
	log := baseLog.With("service", "FanoutService")
	return &fanoutService{
		log:         log,
		variantRepo: variantRepo,
		assetRepo:   assetRepo,
		renderer:    renderer,
		progress:    progress,
		callbackURL: utils.GetEnv("RENDER_CALLBACK_URL", "", log),
		concurrency: utils.GetEnvAsInt("RENDER_SUBMIT_CONCURRENCY", 4, log),
	}
}

func (s *fanoutService) Dispatch(ctx context.Context, project *types.Project, sections []*types.Section) ([]*types.Variant, error) {
	if project == nil || project.ID == uuid.Nil {
		return nil, apperr.ErrInvalidArgument
	}
	if project.VariantCount < 1 {
		return nil, fmt.Errorf("%w: variant count must be at least 1", apperr.ErrInvalidArgument)
	}
	if project.VoiceoverKey == "" {
		return nil, fmt.Errorf("%w: project has no voiceover yet", apperr.ErrInvalidArgument)
	}

	clips, err := s.buildClips(ctx, project, sections)
	if err != nil {
		return nil, err
	}

	rows := make([]*types.Variant, 0, project.VariantCount)
	for i := 0; i < project.VariantCount; i++ {
		rows = append(rows, &types.Variant{
			ProjectID: project.ID,
			Status:    types.VariantStatusQueued,
		})
	}
	variants, err := s.variantRepo.CreateBatch(ctx, nil, rows)
	if err != nil {
		return nil, fmt.Errorf("create variants: %w", err)
	}

	// Submissions outlive the approval request.
	go s.submitAll(context.Background(), project, variants, clips)

	return variants, nil
}

// buildClips resolves the assignment set into render timeline entries, one per
// section in script order.
func (s *fanoutService) buildClips(ctx context.Context, project *types.Project, sections []*types.Section) ([]render.Clip, error) {
	assignments, err := project.DecodeAssignments()
	if err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	if unbound := assignments.Unbound(sections); len(unbound) > 0 {
		return nil, fmt.Errorf("%w: %d sections unbound", apperr.ErrInvalidArgument, len(unbound))
	}

	assetIDs := make([]uuid.UUID, 0, len(sections))
	for _, sec := range sections {
		assetIDs = append(assetIDs, *assignments[sec.ID])
	}
	assets, err := s.assetRepo.GetByIDs(ctx, nil, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	keyByID := make(map[uuid.UUID]string, len(assets))
	for _, a := range assets {
		keyByID[a.ID] = a.StorageKey
	}

	clips := make([]render.Clip, 0, len(sections))
	for _, sec := range sections {
		assetID := *assignments[sec.ID]
		key, ok := keyByID[assetID]
		if !ok {
			return nil, fmt.Errorf("%w: assigned asset %s does not exist", apperr.ErrInvalidArgument, assetID)
		}
		clips = append(clips, render.Clip{
			SectionID:   sec.ID,
			AssetKey:    key,
			Text:        sec.Text,
			OrderIndex:  sec.OrderIndex,
			MaxDuration: sec.ExpectedSeconds,
		})
	}
	return clips, nil
}

func (s *fanoutService) submitAll(ctx context.Context, project *types.Project, variants []*types.Variant, clips []render.Clip) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, v := range variants {
		g.Go(func() error {
			s.submitOne(gctx, project, v, clips, i)
			// Errors stay per-variant; never cancel the group.
			return nil
		})
	}
	_ = g.Wait()
}

func (s *fanoutService) submitOne(ctx context.Context, project *types.Project, variant *types.Variant, clips []render.Clip, seed int) {
	ref, err := s.renderer.Submit(ctx, render.JobRequest{
		VariantID:    variant.ID,
		ProjectID:    project.ID,
		VoiceoverKey: project.VoiceoverKey,
		Clips:        clips,
		Seed:         seed,
		CallbackURL:  s.callbackURL,
	})
	if err != nil {
		coded := apperr.WithCode(apperr.CodeRenderSubmitRejected, err)
		s.log.Warn("Render submit failed",
			"project_id", project.ID,
			"variant_id", variant.ID,
			"error", err,
		)
		if _, aErr := s.progress.ApplyEvent(ctx, types.ProgressEvent{
			VariantID: variant.ID,
			ProjectID: project.ID,
			Status:    types.VariantStatusFailed,
			Error:     coded.Error(),
		}); aErr != nil {
			s.log.Error("Failed to mark variant failed", "variant_id", variant.ID, "error", aErr)
		}
		return
	}

	if err := s.variantRepo.UpdateFields(ctx, nil, variant.ID, map[string]interface{}{
		"status":         types.VariantStatusRendering,
		"render_job_ref": ref.JobID,
	}); err != nil {
		s.log.Error("Failed to record render job ref", "variant_id", variant.ID, "error", err)
	}
}
