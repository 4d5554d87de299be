package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	redisbus "github.com/lalocmtz/adbroll-backend/internal/clients/redis"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// Aggregator folds per-variant progress events into one batch view per
// watched project and pushes every change to SSE subscribers. Subscriptions
// are scoped to the variant id set captured at Watch time: events for variants
// outside that set, or for projects nobody watches, are dropped.
type Aggregator interface {
	Watch(ctx context.Context, projectID uuid.UUID) (types.BatchSummary, error)
	Unwatch(projectID uuid.UUID)
	Snapshot(projectID uuid.UUID) (types.BatchSummary, bool)
	HandleEvent(ev types.ProgressEvent)
	Start(ctx context.Context, bus redisbus.ProgressBus) error
}

// SessionCompleter closes out the operator session for a project once its
// whole batch is terminal. Satisfied by the Coordinator.
type SessionCompleter interface {
	Complete(analysisID uuid.UUID) error
}

type watchState struct {
	ids      map[uuid.UUID]bool
	progress map[uuid.UUID]types.VariantProgress
	doneSent bool
}

type aggregator struct {
	log         *logger.Logger
	variantRepo repos.VariantRepo
	projectRepo repos.ProjectRepo
	bucket      gcp.BucketService
	notify      Notifier
	sessions    SessionCompleter

	mu      sync.Mutex
	watches map[uuid.UUID]*watchState
}

func NewAggregator(
	baseLog *logger.Logger,
	variantRepo repos.VariantRepo,
	projectRepo repos.ProjectRepo,
	bucket gcp.BucketService,
	notify Notifier,
	sessions SessionCompleter,
) Aggregator {
	return &aggregator{
		log:         baseLog.With("service", "Aggregator"),
		variantRepo: variantRepo,
		projectRepo: projectRepo,
		bucket:      bucket,
		notify:      notify,
		sessions:    sessions,
		watches:     make(map[uuid.UUID]*watchState),
	}
}

func (a *aggregator) Start(ctx context.Context, bus redisbus.ProgressBus) error {
	if bus == nil {
		return fmt.Errorf("progress bus required")
	}
	return bus.StartForwarder(ctx, a.HandleEvent)
}

// Watch seeds the batch view from the variant rows, so a reconnecting client
// immediately sees current state instead of waiting for the next event.
// Watching an already-watched project refreshes the seed in place.
func (a *aggregator) Watch(ctx context.Context, projectID uuid.UUID) (types.BatchSummary, error) {
	if projectID == uuid.Nil {
		return types.BatchSummary{}, apperr.ErrInvalidArgument
	}
	variants, err := a.variantRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return types.BatchSummary{}, fmt.Errorf("list variants: %w", err)
	}
	if len(variants) == 0 {
		return types.BatchSummary{}, fmt.Errorf("%w: project %s has no variants", apperr.ErrNotFound, projectID)
	}

	st := &watchState{
		ids:      make(map[uuid.UUID]bool, len(variants)),
		progress: make(map[uuid.UUID]types.VariantProgress, len(variants)),
	}
	for _, v := range variants {
		st.ids[v.ID] = true
		st.progress[v.ID] = a.viewOf(v.Status, v.ProgressPercent, v.ProgressMessage, v.VideoKey, v.SubtitleKey, v.Error)
	}

	a.mu.Lock()
	a.watches[projectID] = st
	summary := summarize(st)
	a.mu.Unlock()
	return summary, nil
}

func (a *aggregator) Unwatch(projectID uuid.UUID) {
	a.mu.Lock()
	delete(a.watches, projectID)
	a.mu.Unlock()
}

func (a *aggregator) Snapshot(projectID uuid.UUID) (types.BatchSummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.watches[projectID]
	if !ok {
		return types.BatchSummary{}, false
	}
	return summarize(st), true
}

// HandleEvent folds one event into the watched batch. The fold mirrors the
// row guard: terminal states stick, and a non-terminal event with a lower
// percent than already shown is dropped. BatchDone fires exactly once.
func (a *aggregator) HandleEvent(ev types.ProgressEvent) {
	a.mu.Lock()
	st, ok := a.watches[ev.ProjectID]
	if !ok || !st.ids[ev.VariantID] {
		a.mu.Unlock()
		return
	}

	prev := st.progress[ev.VariantID]
	if prev.Status.Terminal() {
		a.mu.Unlock()
		return
	}
	if !ev.Status.Terminal() && ev.Percent < prev.Percent {
		a.mu.Unlock()
		return
	}

	st.progress[ev.VariantID] = a.viewOf(ev.Status, ev.Percent, ev.Message, ev.VideoKey, ev.SubtitleKey, ev.Error)
	summary := summarize(st)
	emitDone := summary.AllDone && !st.doneSent
	if emitDone {
		st.doneSent = true
	}
	a.mu.Unlock()

	if a.notify != nil {
		a.notify.VariantProgress(ev.ProjectID, stringKeyed(summary.Variants))
		if emitDone {
			a.notify.BatchDone(ev.ProjectID, summary)
		}
	}

	if emitDone {
		ctx := context.Background()
		if err := a.projectRepo.UpdateFields(ctx, nil, ev.ProjectID, map[string]interface{}{
			"status": types.ProjectStatusDone,
		}); err != nil {
			a.log.Error("Failed to mark project done", "project_id", ev.ProjectID, "error", err)
		}
		a.completeSession(ctx, ev.ProjectID)
	}
}

// completeSession drives the operator session to done once the batch
// finishes. A restarted instance has no live session for the analysis, so a
// locked transition is expected and only logged.
func (a *aggregator) completeSession(ctx context.Context, projectID uuid.UUID) {
	if a.sessions == nil {
		return
	}
	project, err := a.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		a.log.Warn("Batch done but project lookup failed", "project_id", projectID, "error", err)
		return
	}
	if err := a.sessions.Complete(project.AnalysisID); err != nil {
		a.log.Warn("Session completion skipped",
			"project_id", projectID,
			"analysis_id", project.AnalysisID,
			"error", err,
		)
	}
}

func (a *aggregator) viewOf(status types.VariantStatus, percent int, msg, videoKey, subtitleKey, errMsg string) types.VariantProgress {
	vp := types.VariantProgress{
		Status:  status,
		Percent: percent,
		Message: msg,
		Error:   errMsg,
	}
	if status == types.VariantStatusCompleted {
		vp.Percent = 100
		if videoKey != "" && a.bucket != nil {
			vp.VideoURL = a.bucket.GetPublicURL(gcp.BucketCategoryRender, videoKey)
		}
		if subtitleKey != "" && a.bucket != nil {
			vp.SubtitleURL = a.bucket.GetPublicURL(gcp.BucketCategoryRender, subtitleKey)
		}
	}
	return vp
}

func summarize(st *watchState) types.BatchSummary {
	summary := types.BatchSummary{Variants: make(map[uuid.UUID]types.VariantProgress, len(st.progress))}
	terminal := 0
	for id, vp := range st.progress {
		summary.Variants[id] = vp
		switch vp.Status {
		case types.VariantStatusCompleted:
			summary.Completed++
			terminal++
		case types.VariantStatusFailed:
			summary.Failed++
			terminal++
		}
	}
	summary.AllDone = len(st.progress) > 0 && terminal == len(st.progress)
	return summary
}

func stringKeyed(in map[uuid.UUID]types.VariantProgress) map[string]types.VariantProgress {
	out := make(map[string]types.VariantProgress, len(in))
	for id, vp := range in {
		out[id.String()] = vp
	}
	return out
}
