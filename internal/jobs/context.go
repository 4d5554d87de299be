package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// Notifier is the side channel for job lifecycle events, implemented by the
// SSE notifier service. Nil is allowed; progress then only hits the database.
type Notifier interface {
	JobProgress(job *types.JobRun, stage string, pct int, msg string)
	JobFailed(job *types.JobRun, stage string, errMsg string)
	JobDone(job *types.JobRun)
}

// Context is the execution handle for a single claimed job run. Pipelines
// never touch the job_run row directly; Progress, Fail and Succeed are the
// only sanctioned ways to report state.
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify Notifier

	payload map[string]any
}

// NewContext eagerly decodes the job payload so handlers can read inputs via
// Payload()/PayloadUUID(). A malformed payload is non-fatal here; handlers
// validate required fields themselves.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify Notifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil; an unset or unparseable payload yields an empty
// map.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Progress publishes a non-terminal status update: persists stage, progress
// and message with a fresh heartbeat, mirrors them into the in-memory row, and
// emits a notifier event.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		_ = c.Repo.UpdateFields(ctx, nil, c.Job.ID, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

// Fail marks the run terminally failed: status=failed, the error message
// recorded, locked_at cleared so the claim query does not treat it as
// in-progress.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		_ = c.Repo.UpdateFields(ctx, nil, c.Job.ID, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

// Succeed marks the run terminally succeeded and stores the serialized result
// on the row.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		_ = c.Repo.UpdateFields(ctx, nil, c.Job.ID, map[string]interface{}{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job)
	}
}
