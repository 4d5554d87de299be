package services

import (
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/sse"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// Notifier pushes pipeline lifecycle events to SSE subscribers. Analysis
// events go to the analysis channel, render events to the project channel.
// It also satisfies the job worker's notifier so background runs surface
// progress without knowing about SSE.
type Notifier interface {
	JobProgress(job *types.JobRun, stage string, pct int, msg string)
	JobFailed(job *types.JobRun, stage string, errMsg string)
	JobDone(job *types.JobRun)

	VariantProgress(projectID uuid.UUID, progress map[string]types.VariantProgress)
	BatchDone(projectID uuid.UUID, summary types.BatchSummary)
}

type notifier struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewNotifier(baseLog *logger.Logger, hub *sse.Hub) Notifier {
	return &notifier{
		log: baseLog.With("service", "Notifier"),
		hub: hub,
	}
}

func (n *notifier) jobChannel(job *types.JobRun) string {
	if job == nil || job.EntityID == nil {
		return ""
	}
	return job.EntityID.String()
}

func (n *notifier) JobProgress(job *types.JobRun, stage string, pct int, msg string) {
	ch := n.jobChannel(job)
	if ch == "" {
		return
	}
	n.hub.Broadcast(sse.Message{
		Channel: ch,
		Event:   sse.EventAnalysisProgress,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"progress": pct,
			"message":  msg,
		},
	})
}

func (n *notifier) JobFailed(job *types.JobRun, stage string, errMsg string) {
	ch := n.jobChannel(job)
	if ch == "" {
		return
	}
	n.hub.Broadcast(sse.Message{
		Channel: ch,
		Event:   sse.EventAnalysisFailed,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
			"stage":    stage,
			"error":    errMsg,
		},
	})
}

func (n *notifier) JobDone(job *types.JobRun) {
	ch := n.jobChannel(job)
	if ch == "" {
		return
	}
	n.hub.Broadcast(sse.Message{
		Channel: ch,
		Event:   sse.EventAnalysisDone,
		Data: map[string]any{
			"job_id":   job.ID,
			"job_type": job.JobType,
		},
	})
}

func (n *notifier) VariantProgress(projectID uuid.UUID, progress map[string]types.VariantProgress) {
	if projectID == uuid.Nil {
		return
	}
	n.hub.Broadcast(sse.Message{
		Channel: projectID.String(),
		Event:   sse.EventVariantProgress,
		Data:    progress,
	})
}

func (n *notifier) BatchDone(projectID uuid.UUID, summary types.BatchSummary) {
	if projectID == uuid.Nil {
		return
	}
	n.hub.Broadcast(sse.Message{
		Channel: projectID.String(),
		Event:   sse.EventBatchDone,
		Data:    summary,
	})
}
