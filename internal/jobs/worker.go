package jobs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/utils"
)

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *Registry
	notify   Notifier
	tracer   trace.Tracer
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *Registry, notify Notifier) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		tracer:   otel.Tracer("adbroll.jobs"),
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, w.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	const maxAttempts = 5
	retryDelay := 30 * time.Second
	staleRunning := 30 * time.Minute

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(ctx, nil, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}

			h, ok := w.registry.Get(job.JobType)
			if !ok {
				w.log.Warn("No handler registered for job_type",
					"worker_id", workerID,
					"job_type", job.JobType,
					"job_id", job.ID,
				)
				jc := NewContext(ctx, w.db, job, w.repo, w.notify)
				jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
				continue
			}

			jobCtx, span := w.tracer.Start(ctx, "job.run", trace.WithAttributes(
				attribute.String("job.type", job.JobType),
				attribute.String("job.id", job.ID.String()),
			))
			jc := NewContext(jobCtx, w.db, job, w.repo, w.notify)

			func() {
				defer span.End()
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("Job handler panic",
							"worker_id", workerID,
							"job_id", job.ID,
							"job_type", job.JobType,
							"panic", r,
						)
						err := errFromRecover(r)
						span.RecordError(err)
						span.SetStatus(otelcodes.Error, "panic")
						jc.Fail("panic", err)
					}
				}()

				if runErr := h.Run(jc); runErr != nil {
					// Most pipelines call jc.Fail themselves; this is a safety net.
					span.RecordError(runErr)
					span.SetStatus(otelcodes.Error, runErr.Error())
					jc.Fail("run", runErr)
				}
			}()
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
