package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
	"github.com/lalocmtz/adbroll-backend/internal/workflow"
)

// Coordinator drives one analysis through the whole pipeline: it owns the
// per-analysis workflow machine, accumulates the operator's choices
// (assignments, voice, variant count) as an in-memory draft, and on approval
// turns the draft into the durable project plus its variant batch. The
// machine is the sole gatekeeper; nothing here mutates state out of stage
// order.
type Coordinator interface {
	StartAnalysis(ctx context.Context, brandID uuid.UUID, sourceURL, storageKey string) (*types.Analysis, error)
	WaitForAnalysis(ctx context.Context, analysisID uuid.UUID) (*types.Analysis, error)
	ApproveScript(ctx context.Context, analysisID uuid.UUID) error
	AssignClips(ctx context.Context, analysisID uuid.UUID, assignments types.AssignmentSet) error
	SelectVoice(ctx context.Context, analysisID uuid.UUID, voiceID string, stability, similarity, style float64) error
	ConfigureVariants(ctx context.Context, analysisID uuid.UUID, count int) error
	Approve(ctx context.Context, analysisID uuid.UUID) (*types.Project, []*types.Variant, error)
	Complete(analysisID uuid.UUID) error
	Fail(analysisID uuid.UUID, reason string) error
	Stage(analysisID uuid.UUID) workflow.Stage
	Reset(analysisID uuid.UUID)
}

type sessionDraft struct {
	assignments  types.AssignmentSet
	voiceID      string
	stability    float64
	similarity   float64
	style        float64
	variantCount int
}

type session struct {
	machine *workflow.Machine
	draft   sessionDraft
}

type coordinator struct {
	log          *logger.Logger
	analysisRepo repos.AnalysisRepo
	sectionRepo  repos.SectionRepo
	projectRepo  repos.ProjectRepo
	jobRepo      repos.JobRunRepo
	voiceover    VoiceoverService
	fanout       FanoutService

	pollInterval time.Duration
	pollAttempts int

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

func NewCoordinator(
	baseLog *logger.Logger,
	analysisRepo repos.AnalysisRepo,
	sectionRepo repos.SectionRepo,
	projectRepo repos.ProjectRepo,
	jobRepo repos.JobRunRepo,
	voiceover VoiceoverService,
	fanout FanoutService,
) Coordinator {
	return &coordinator{
		log:          baseLog.With("service", "Coordinator"),
		analysisRepo: analysisRepo,
		sectionRepo:  sectionRepo,
		projectRepo:  projectRepo,
		jobRepo:      jobRepo,
		voiceover:    voiceover,
		fanout:       fanout,
		pollInterval: 2 * time.Second,
		pollAttempts: 150,
		sessions:     make(map[uuid.UUID]*session),
	}
}

func (c *coordinator) sessionFor(analysisID uuid.UUID) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[analysisID]
	if !ok {
		s = &session{machine: workflow.NewMachine()}
		c.sessions[analysisID] = s
	}
	return s
}

func (c *coordinator) Stage(analysisID uuid.UUID) workflow.Stage {
	return c.sessionFor(analysisID).machine.Stage()
}

func (c *coordinator) StartAnalysis(ctx context.Context, brandID uuid.UUID, sourceURL, storageKey string) (*types.Analysis, error) {
	if brandID == uuid.Nil {
		return nil, fmt.Errorf("%w: brand id required", apperr.ErrInvalidArgument)
	}
	if storageKey == "" {
		return nil, fmt.Errorf("%w: storage key required", apperr.ErrInvalidArgument)
	}

	analysis, err := c.analysisRepo.Create(ctx, nil, &types.Analysis{
		BrandID:    brandID,
		SourceURL:  sourceURL,
		StorageKey: storageKey,
		Status:     types.AnalysisStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	s := c.sessionFor(analysis.ID)
	if err := s.machine.BeginAnalysis(); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"analysis_id": analysis.ID.String()})
	entityID := analysis.ID
	if _, err := c.jobRepo.Enqueue(ctx, nil, &types.JobRun{
		JobType:    types.JobTypeVideoAnalyze,
		EntityType: "analysis",
		EntityID:   &entityID,
		Status:     types.JobStatusQueued,
		Payload:    datatypes.JSON(payload),
	}); err != nil {
		return nil, fmt.Errorf("enqueue analysis job: %w", err)
	}

	c.log.Info("Analysis started", "analysis_id", analysis.ID, "brand_id", brandID)
	return analysis, nil
}

// WaitForAnalysis polls the analysis row at a fixed interval until it reaches
// a terminal status. The attempt cap bounds the wait; exhaustion returns
// ErrPollTimeout with the analysis left untouched.
func (c *coordinator) WaitForAnalysis(ctx context.Context, analysisID uuid.UUID) (*types.Analysis, error) {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		analysis, err := c.analysisRepo.GetByID(ctx, nil, analysisID)
		if err != nil {
			return nil, err
		}
		if analysis.Status.Terminal() {
			if analysis.Status == types.AnalysisStatusFailed {
				c.failSession(analysisID, analysis.Error)
			}
			return analysis, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("%w: analysis %s still not terminal after %d attempts", apperr.ErrPollTimeout, analysisID, c.pollAttempts)
}

// failSession moves the machine to failed when the analysis row is failed, so
// the reported stage matches the durable truth. Safe to call repeatedly.
func (c *coordinator) failSession(analysisID uuid.UUID, reason string) {
	s := c.sessionFor(analysisID)
	if s.machine.Stage() == workflow.StageFailed {
		return
	}
	if err := s.machine.Fail(reason); err != nil {
		c.log.Warn("Could not fail session", "analysis_id", analysisID, "error", err)
	}
}

func (c *coordinator) ApproveScript(ctx context.Context, analysisID uuid.UUID) error {
	analysis, err := c.analysisRepo.GetByID(ctx, nil, analysisID)
	if err != nil {
		return err
	}
	return c.sessionFor(analysisID).machine.MarkScriptReady(analysis)
}

func (c *coordinator) AssignClips(ctx context.Context, analysisID uuid.UUID, assignments types.AssignmentSet) error {
	sections, err := c.sectionRepo.ListByAnalysis(ctx, nil, analysisID)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	if len(sections) == 0 {
		return fmt.Errorf("%w: analysis %s has no sections", apperr.ErrInvalidArgument, analysisID)
	}

	s := c.sessionFor(analysisID)
	if err := s.machine.MarkClipsAssigned(assignments, sections); err != nil {
		return err
	}
	c.mu.Lock()
	s.draft.assignments = assignments
	c.mu.Unlock()
	return nil
}

func (c *coordinator) SelectVoice(ctx context.Context, analysisID uuid.UUID, voiceID string, stability, similarity, style float64) error {
	s := c.sessionFor(analysisID)
	if err := s.machine.MarkVoiceReady(voiceID); err != nil {
		return err
	}
	c.mu.Lock()
	s.draft.voiceID = voiceID
	s.draft.stability = stability
	s.draft.similarity = similarity
	s.draft.style = style
	c.mu.Unlock()
	return nil
}

func (c *coordinator) ConfigureVariants(ctx context.Context, analysisID uuid.UUID, count int) error {
	s := c.sessionFor(analysisID)
	if err := s.machine.MarkVariantsConfigured(count); err != nil {
		return err
	}
	c.mu.Lock()
	s.draft.variantCount = count
	c.mu.Unlock()
	return nil
}

// Approve is the point of no return: the draft becomes a project row (the
// unique index on analysis_id enforces exactly-once), the voiceover is
// synthesized, and the variant batch fans out. A voiceover failure surfaces
// to the operator without failing the machine, so approval can be re-tried
// with adjusted voice settings.
func (c *coordinator) Approve(ctx context.Context, analysisID uuid.UUID) (*types.Project, []*types.Variant, error) {
	analysis, err := c.analysisRepo.GetByID(ctx, nil, analysisID)
	if err != nil {
		return nil, nil, err
	}
	sections, err := c.sectionRepo.ListByAnalysis(ctx, nil, analysisID)
	if err != nil {
		return nil, nil, fmt.Errorf("list sections: %w", err)
	}

	s := c.sessionFor(analysisID)
	c.mu.Lock()
	draft := s.draft
	c.mu.Unlock()

	if s.machine.Stage() != workflow.StageVariantsConfigured {
		return nil, nil, fmt.Errorf("%w: approval requires configured variants, stage is %s", apperr.ErrStageLocked, s.machine.Stage())
	}

	encoded, err := types.EncodeAssignments(draft.assignments)
	if err != nil {
		return nil, nil, fmt.Errorf("encode assignments: %w", err)
	}

	// A prior approval attempt may have created the project and then lost its
	// voiceover; reuse that row instead of tripping the unique index.
	project, err := c.projectRepo.GetByAnalysis(ctx, nil, analysisID)
	if errors.Is(err, apperr.ErrNotFound) {
		project, err = c.projectRepo.Create(ctx, nil, &types.Project{
			AnalysisID:      analysisID,
			BrandID:         analysis.BrandID,
			Assignments:     encoded,
			VoiceID:         draft.voiceID,
			VoiceStability:  draft.stability,
			VoiceSimilarity: draft.similarity,
			VoiceStyle:      draft.style,
			VariantCount:    draft.variantCount,
			Status:          types.ProjectStatusCreated,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create project: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	} else if project.Status != types.ProjectStatusCreated {
		return nil, nil, fmt.Errorf("%w: project %s already dispatched", apperr.ErrStageLocked, project.ID)
	}

	if project.VoiceoverKey == "" {
		voiceoverKey, err := c.voiceover.Synthesize(ctx, project, sections)
		if err != nil {
			return nil, nil, err
		}
		if err := c.projectRepo.UpdateFields(ctx, nil, project.ID, map[string]interface{}{
			"voiceover_key": voiceoverKey,
		}); err != nil {
			return nil, nil, fmt.Errorf("record voiceover: %w", err)
		}
		project.VoiceoverKey = voiceoverKey
	}

	// The row stays in created until fan-out succeeds, so a failed dispatch
	// leaves the approval retryable instead of tripping the dispatched guard.
	variants, err := c.fanout.Dispatch(ctx, project, sections)
	if err != nil {
		return nil, nil, fmt.Errorf("dispatch variants: %w", err)
	}

	if err := c.projectRepo.UpdateFields(ctx, nil, project.ID, map[string]interface{}{
		"status": types.ProjectStatusRendering,
	}); err != nil {
		return nil, nil, fmt.Errorf("mark project rendering: %w", err)
	}
	project.Status = types.ProjectStatusRendering

	if err := s.machine.BeginRendering(project.ID); err != nil {
		return nil, nil, err
	}

	c.log.Info("Project approved",
		"analysis_id", analysisID,
		"project_id", project.ID,
		"variants", len(variants),
	)
	return project, variants, nil
}

func (c *coordinator) Complete(analysisID uuid.UUID) error {
	return c.sessionFor(analysisID).machine.Complete()
}

func (c *coordinator) Fail(analysisID uuid.UUID, reason string) error {
	return c.sessionFor(analysisID).machine.Fail(reason)
}

func (c *coordinator) Reset(analysisID uuid.UUID) {
	s := c.sessionFor(analysisID)
	s.machine.Reset()
	c.mu.Lock()
	s.draft = sessionDraft{}
	c.mu.Unlock()
}
