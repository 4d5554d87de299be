package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	redisbus "github.com/lalocmtz/adbroll-backend/internal/clients/redis"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// ProgressService is the single write path for render progress. The callback
// handler feeds events here; the row guard in the repo keeps application
// idempotent and monotonic, and only events that actually changed a row are
// republished on the bus.
type ProgressService interface {
	ApplyEvent(ctx context.Context, ev types.ProgressEvent) (bool, error)
	Fetch(ctx context.Context, ids []uuid.UUID) (types.BatchSummary, error)
}

type progressService struct {
	log         *logger.Logger
	variantRepo repos.VariantRepo
	bus         redisbus.ProgressBus
	bucket      gcp.BucketService
}

func NewProgressService(
	baseLog *logger.Logger,
	variantRepo repos.VariantRepo,
	bus redisbus.ProgressBus,
	bucket gcp.BucketService,
) ProgressService {
	return &progressService{
		log:         baseLog.With("service", "ProgressService"),
		variantRepo: variantRepo,
		bus:         bus,
		bucket:      bucket,
	}
}

func (s *progressService) ApplyEvent(ctx context.Context, ev types.ProgressEvent) (bool, error) {
	changed, err := s.variantRepo.ApplyProgress(ctx, nil, ev)
	if err != nil {
		return false, fmt.Errorf("apply progress: %w", err)
	}
	if !changed {
		// Stale or duplicate event; dropping it keeps subscribers monotonic.
		s.log.Debug("Dropped stale progress event",
			"variant_id", ev.VariantID,
			"status", ev.Status,
			"percent", ev.Percent,
		)
		return false, nil
	}

	if s.bus != nil {
		if pubErr := s.bus.Publish(ctx, ev); pubErr != nil {
			// The row is already updated; the poll path still sees the truth.
			s.log.Warn("Progress publish failed", "variant_id", ev.VariantID, "error", pubErr)
		}
	}
	return true, nil
}

// Fetch reads current progress for exactly the requested variant ids. Unknown
// ids are simply absent from the result.
func (s *progressService) Fetch(ctx context.Context, ids []uuid.UUID) (types.BatchSummary, error) {
	summary := types.BatchSummary{Variants: map[uuid.UUID]types.VariantProgress{}}
	if len(ids) == 0 {
		summary.AllDone = true
		return summary, nil
	}

	variants, err := s.variantRepo.GetByIDs(ctx, nil, ids)
	if err != nil {
		return types.BatchSummary{}, fmt.Errorf("fetch variants: %w", err)
	}

	terminal := 0
	for _, v := range variants {
		vp := types.VariantProgress{
			Status:  v.Status,
			Percent: v.ProgressPercent,
			Message: v.ProgressMessage,
			Error:   v.Error,
		}
		if v.Status == types.VariantStatusCompleted {
			if v.VideoKey != "" {
				vp.VideoURL = s.bucket.GetPublicURL(gcp.BucketCategoryRender, v.VideoKey)
			}
			if v.SubtitleKey != "" {
				vp.SubtitleURL = s.bucket.GetPublicURL(gcp.BucketCategoryRender, v.SubtitleKey)
			}
		}
		summary.Variants[v.ID] = vp

		switch v.Status {
		case types.VariantStatusCompleted:
			summary.Completed++
			terminal++
		case types.VariantStatusFailed:
			summary.Failed++
			terminal++
		}
	}

	summary.AllDone = len(variants) == len(ids) && terminal == len(variants)
	return summary, nil
}
