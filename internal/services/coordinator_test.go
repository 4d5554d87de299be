package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/clients/elevenlabs"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/types"
	"github.com/lalocmtz/adbroll-backend/internal/workflow"
)

type fakeAnalysisRepo struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]*types.Analysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{analyses: map[uuid.UUID]*types.Analysis{}}
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, tx *gorm.DB, analysis *types.Analysis) (*types.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis.ID = uuid.New()
	f.analyses[analysis.ID] = analysis
	return analysis, nil
}

func (f *fakeAnalysisRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAnalysisRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (f *fakeAnalysisRepo) setStatus(id uuid.UUID, status types.AnalysisStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.analyses[id]; ok {
		a.Status = status
	}
}

func (f *fakeAnalysisRepo) setFailure(id uuid.UUID, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.analyses[id]; ok {
		a.Status = types.AnalysisStatusFailed
		a.Error = msg
	}
}

type fakeSectionRepo struct {
	sections map[uuid.UUID][]*types.Section
}

func (f *fakeSectionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, sections []*types.Section) ([]*types.Section, error) {
	return sections, nil
}

func (f *fakeSectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Section, error) {
	return nil, apperr.ErrNotFound
}

func (f *fakeSectionRepo) ListByAnalysis(ctx context.Context, tx *gorm.DB, analysisID uuid.UUID) ([]*types.Section, error) {
	return f.sections[analysisID], nil
}

func (f *fakeSectionRepo) UpdateText(ctx context.Context, tx *gorm.DB, id uuid.UUID, text string) error {
	return nil
}

type fakeJobRunRepo struct {
	mu       sync.Mutex
	enqueued []*types.JobRun
}

func (f *fakeJobRunRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.JobRun) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.ID = uuid.New()
	f.enqueued = append(f.enqueued, job)
	return job, nil
}

func (f *fakeJobRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.JobRun, error) {
	return nil, nil
}

func (f *fakeJobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (f *fakeJobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

type fakeVoiceover struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeVoiceover) Synthesize(ctx context.Context, project *types.Project, sections []*types.Section) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "voiceovers/" + project.ID.String() + "/track.mp3", nil
}

func (f *fakeVoiceover) ListVoices(ctx context.Context) ([]elevenlabs.Voice, error) {
	return nil, nil
}

type fakeFanout struct {
	mu        sync.Mutex
	err       error
	lastProj  *types.Project
	dispatchN int
}

func (f *fakeFanout) Dispatch(ctx context.Context, project *types.Project, sections []*types.Section) ([]*types.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastProj = project
	f.dispatchN++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*types.Variant, 0, project.VariantCount)
	for i := 0; i < project.VariantCount; i++ {
		out = append(out, &types.Variant{ID: uuid.New(), ProjectID: project.ID, Status: types.VariantStatusQueued})
	}
	return out, nil
}

type coordinatorFixture struct {
	coord        *coordinator
	analysisRepo *fakeAnalysisRepo
	sectionRepo  *fakeSectionRepo
	projectRepo  *fakeProjectRepo
	jobRepo      *fakeJobRunRepo
	voiceover    *fakeVoiceover
	fanout       *fakeFanout
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		analysisRepo: newFakeAnalysisRepo(),
		sectionRepo:  &fakeSectionRepo{sections: map[uuid.UUID][]*types.Section{}},
		projectRepo:  newFakeProjectRepo(),
		jobRepo:      &fakeJobRunRepo{},
		voiceover:    &fakeVoiceover{},
		fanout:       &fakeFanout{},
	}
	f.coord = NewCoordinator(
		testLogger(t),
		f.analysisRepo,
		f.sectionRepo,
		f.projectRepo,
		f.jobRepo,
		f.voiceover,
		f.fanout,
	).(*coordinator)
	f.coord.pollInterval = time.Millisecond
	f.coord.pollAttempts = 20
	return f
}

func (f *coordinatorFixture) seedSections(analysisID uuid.UUID, n int) ([]*types.Section, types.AssignmentSet) {
	sections := make([]*types.Section, 0, n)
	set := types.AssignmentSet{}
	for i := 0; i < n; i++ {
		sec := &types.Section{ID: uuid.New(), AnalysisID: analysisID, Type: types.SectionTypeHook, Text: "line", OrderIndex: i}
		sections = append(sections, sec)
		assetID := uuid.New()
		set[sec.ID] = &assetID
	}
	f.sectionRepo.sections[analysisID] = sections
	return sections, set
}

func TestCoordinatorRoundTrip(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "https://example.com/ad.mp4", "sources/ad.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if got := f.coord.Stage(analysis.ID); got != workflow.StageAnalyzing {
		t.Fatalf("stage after start: want=%s got=%s", workflow.StageAnalyzing, got)
	}
	if len(f.jobRepo.enqueued) != 1 || f.jobRepo.enqueued[0].JobType != types.JobTypeVideoAnalyze {
		t.Fatalf("analysis job not enqueued: %+v", f.jobRepo.enqueued)
	}

	// background job completes while the client polls
	f.analysisRepo.setStatus(analysis.ID, types.AnalysisStatusCompleted)
	polled, err := f.coord.WaitForAnalysis(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}
	if polled.Status != types.AnalysisStatusCompleted {
		t.Fatalf("polled status: got %s", polled.Status)
	}

	_, set := f.seedSections(analysis.ID, 4)

	if err := f.coord.ApproveScript(ctx, analysis.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	if err := f.coord.AssignClips(ctx, analysis.ID, set); err != nil {
		t.Fatalf("AssignClips: %v", err)
	}
	if err := f.coord.SelectVoice(ctx, analysis.ID, "voice-7", 0.4, 0.9, 0.2); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}
	if err := f.coord.ConfigureVariants(ctx, analysis.ID, 3); err != nil {
		t.Fatalf("ConfigureVariants: %v", err)
	}

	project, variants, err := f.coord.Approve(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("variants: want=3 got=%d", len(variants))
	}
	if project.VoiceID != "voice-7" || project.VoiceSimilarity != 0.9 {
		t.Fatalf("voice settings not carried: %+v", project)
	}
	if project.VoiceoverKey == "" {
		t.Fatalf("voiceover key missing")
	}
	if got := f.coord.Stage(analysis.ID); got != workflow.StageRendering {
		t.Fatalf("stage after approve: want=%s got=%s", workflow.StageRendering, got)
	}
	decoded, err := project.DecodeAssignments()
	if err != nil {
		t.Fatalf("decode persisted assignments: %v", err)
	}
	if len(decoded) != 4 {
		t.Fatalf("persisted assignments: want=4 got=%d", len(decoded))
	}

	if err := f.coord.Complete(analysis.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := f.coord.Stage(analysis.ID); got != workflow.StageDone {
		t.Fatalf("final stage: got %s", got)
	}
}

func TestCoordinatorWaitForAnalysisTimeout(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.coord.pollAttempts = 3
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/slow.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	f.analysisRepo.setStatus(analysis.ID, types.AnalysisStatusProcessing)

	_, err = f.coord.WaitForAnalysis(ctx, analysis.ID)
	if !errors.Is(err, apperr.ErrPollTimeout) {
		t.Fatalf("want ErrPollTimeout, got %v", err)
	}
}

func TestCoordinatorApproveRequiresConfiguredStage(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/a.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	f.seedSections(analysis.ID, 2)

	if _, _, err := f.coord.Approve(ctx, analysis.ID); !errors.Is(err, apperr.ErrStageLocked) {
		t.Fatalf("want ErrStageLocked, got %v", err)
	}
	if f.fanout.dispatchN != 0 {
		t.Fatalf("fanout must not run before approval unlocks")
	}
}

func TestCoordinatorVoiceoverFailureIsRetryable(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/a.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	f.analysisRepo.setStatus(analysis.ID, types.AnalysisStatusCompleted)
	_, set := f.seedSections(analysis.ID, 2)

	if err := f.coord.ApproveScript(ctx, analysis.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	if err := f.coord.AssignClips(ctx, analysis.ID, set); err != nil {
		t.Fatalf("AssignClips: %v", err)
	}
	if err := f.coord.SelectVoice(ctx, analysis.ID, "voice-1", 0.5, 0.5, 0); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}
	if err := f.coord.ConfigureVariants(ctx, analysis.ID, 2); err != nil {
		t.Fatalf("ConfigureVariants: %v", err)
	}

	f.voiceover.err = apperr.WithCode(apperr.CodeTTSFailed, errors.New("voice quota exhausted"))
	_, _, err = f.coord.Approve(ctx, analysis.ID)
	if apperr.CodeOf(err) != apperr.CodeTTSFailed {
		t.Fatalf("want TTS_FAILED, got %v", err)
	}
	// stage must not advance; the operator can fix settings and retry
	if got := f.coord.Stage(analysis.ID); got != workflow.StageVariantsConfigured {
		t.Fatalf("stage after tts failure: got %s", got)
	}

	f.voiceover.err = nil
	project, variants, err := f.coord.Approve(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("variants: want=2 got=%d", len(variants))
	}
	// the first attempt's project row is reused, not duplicated
	if len(f.projectRepo.projects) != 1 {
		t.Fatalf("projects: want=1 got=%d", len(f.projectRepo.projects))
	}
	if project.Status != types.ProjectStatusRendering {
		t.Fatalf("project status: got %s", project.Status)
	}
}

// driveToConfigured walks the wizard up to the variants_configured stage.
func (f *coordinatorFixture) driveToConfigured(t *testing.T, variantCount int) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/a.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	f.analysisRepo.setStatus(analysis.ID, types.AnalysisStatusCompleted)
	_, set := f.seedSections(analysis.ID, 2)

	if err := f.coord.ApproveScript(ctx, analysis.ID); err != nil {
		t.Fatalf("ApproveScript: %v", err)
	}
	if err := f.coord.AssignClips(ctx, analysis.ID, set); err != nil {
		t.Fatalf("AssignClips: %v", err)
	}
	if err := f.coord.SelectVoice(ctx, analysis.ID, "voice-1", 0.5, 0.5, 0); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}
	if err := f.coord.ConfigureVariants(ctx, analysis.ID, variantCount); err != nil {
		t.Fatalf("ConfigureVariants: %v", err)
	}
	return analysis.ID
}

func TestCoordinatorDispatchFailureIsRetryable(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	analysisID := f.driveToConfigured(t, 2)

	f.fanout.err = errors.New("render queue unavailable")
	if _, _, err := f.coord.Approve(ctx, analysisID); err == nil {
		t.Fatalf("want dispatch error")
	}
	if got := f.coord.Stage(analysisID); got != workflow.StageVariantsConfigured {
		t.Fatalf("stage after dispatch failure: got %s", got)
	}
	// the project row must not look dispatched, or a retry would be rejected
	project, err := f.projectRepo.GetByAnalysis(ctx, nil, analysisID)
	if err != nil {
		t.Fatalf("GetByAnalysis: %v", err)
	}
	if project.Status != types.ProjectStatusCreated {
		t.Fatalf("project status after dispatch failure: got %s", project.Status)
	}

	f.fanout.err = nil
	project, variants, err := f.coord.Approve(ctx, analysisID)
	if err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("variants: want=2 got=%d", len(variants))
	}
	if project.Status != types.ProjectStatusRendering {
		t.Fatalf("project status after retry: got %s", project.Status)
	}
	// the voiceover from the first attempt is reused, not re-synthesized
	if f.voiceover.calls != 1 {
		t.Fatalf("voiceover calls: want=1 got=%d", f.voiceover.calls)
	}
}

func TestCoordinatorFailedAnalysisFailsSession(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/a.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	f.analysisRepo.setFailure(analysis.ID, "no speech detected")

	polled, err := f.coord.WaitForAnalysis(ctx, analysis.ID)
	if err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}
	if polled.Status != types.AnalysisStatusFailed {
		t.Fatalf("polled status: got %s", polled.Status)
	}
	if got := f.coord.Stage(analysis.ID); got != workflow.StageFailed {
		t.Fatalf("stage after failed analysis: want=%s got=%s", workflow.StageFailed, got)
	}

	// a failed session stays locked until reset
	if err := f.coord.ApproveScript(ctx, analysis.ID); !errors.Is(err, apperr.ErrStageLocked) {
		t.Fatalf("want ErrStageLocked, got %v", err)
	}
	f.coord.Reset(analysis.ID)
	if got := f.coord.Stage(analysis.ID); got != workflow.StageIdle {
		t.Fatalf("stage after reset: got %s", got)
	}
}

func TestCoordinatorBatchCompletionFinishesSession(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	analysisID := f.driveToConfigured(t, 2)

	project, _, err := f.coord.Approve(ctx, analysisID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := f.coord.Stage(analysisID); got != workflow.StageRendering {
		t.Fatalf("stage after approve: got %s", got)
	}

	// the aggregator watches the batch and closes the session on completion
	variantRepo := newFakeVariantRepo()
	rows, err := variantRepo.CreateBatch(ctx, nil, []*types.Variant{
		{ProjectID: project.ID, Status: types.VariantStatusQueued},
		{ProjectID: project.ID, Status: types.VariantStatusQueued},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	agg := NewAggregator(testLogger(t), variantRepo, f.projectRepo, fakeBucket{}, &fakeNotifier{}, f.coord).(*aggregator)
	if _, err := agg.Watch(ctx, project.ID); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	for _, v := range rows {
		agg.HandleEvent(types.ProgressEvent{
			VariantID: v.ID,
			ProjectID: project.ID,
			Status:    types.VariantStatusCompleted,
			VideoKey:  "renders/" + v.ID.String() + ".mp4",
		})
	}

	if got := f.coord.Stage(analysisID); got != workflow.StageDone {
		t.Fatalf("stage after batch completion: want=%s got=%s", workflow.StageDone, got)
	}
}

func TestCoordinatorResetClearsDraft(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	analysis, err := f.coord.StartAnalysis(ctx, uuid.New(), "", "sources/a.mp4")
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	if err := f.coord.Fail(analysis.ID, "transcription exploded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got := f.coord.Stage(analysis.ID); got != workflow.StageFailed {
		t.Fatalf("stage after fail: got %s", got)
	}
	f.coord.Reset(analysis.ID)
	if got := f.coord.Stage(analysis.ID); got != workflow.StageIdle {
		t.Fatalf("stage after reset: got %s", got)
	}
}
