package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/clients/render"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type fakeVariantRepo struct {
	mu       sync.Mutex
	created  []*types.Variant
	updates  map[uuid.UUID]map[string]interface{}
	applied  []types.ProgressEvent
	byID     map[uuid.UUID]*types.Variant
	applyAll bool
}

func newFakeVariantRepo() *fakeVariantRepo {
	return &fakeVariantRepo{
		updates:  map[uuid.UUID]map[string]interface{}{},
		byID:     map[uuid.UUID]*types.Variant{},
		applyAll: true,
	}
}

func (f *fakeVariantRepo) CreateBatch(ctx context.Context, tx *gorm.DB, variants []*types.Variant) ([]*types.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range variants {
		v.ID = uuid.New()
		f.created = append(f.created, v)
		f.byID[v.ID] = v
	}
	return variants, nil
}

func (f *fakeVariantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

func (f *fakeVariantRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Variant
	for _, id := range ids {
		if v, ok := f.byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVariantRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Variant
	for _, v := range f.created {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVariantRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = updates
	if v, ok := f.byID[id]; ok {
		if s, ok := updates["status"].(types.VariantStatus); ok {
			v.Status = s
		}
		if ref, ok := updates["render_job_ref"].(string); ok {
			v.RenderJobRef = ref
		}
	}
	return nil
}

func (f *fakeVariantRepo) ApplyProgress(ctx context.Context, tx *gorm.DB, ev types.ProgressEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, ev)
	if v, ok := f.byID[ev.VariantID]; ok && f.applyAll {
		v.Status = ev.Status
		v.ProgressPercent = ev.Percent
		v.Error = ev.Error
		if ev.Status == types.VariantStatusCompleted {
			v.ProgressPercent = 100
			v.VideoKey = ev.VideoKey
			v.SubtitleKey = ev.SubtitleKey
		}
	}
	return f.applyAll, nil
}

type fakeAssetRepo struct {
	assets map[uuid.UUID]*types.Asset
}

func (f *fakeAssetRepo) Create(ctx context.Context, tx *gorm.DB, asset *types.Asset) (*types.Asset, error) {
	return asset, nil
}

func (f *fakeAssetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error) {
	var out []*types.Asset
	for _, id := range ids {
		if a, ok := f.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssetRepo) ListByFolder(ctx context.Context, tx *gorm.DB, folderID uuid.UUID) ([]*types.Asset, error) {
	return nil, nil
}

func (f *fakeAssetRepo) Move(ctx context.Context, tx *gorm.DB, assetID, folderID uuid.UUID) error {
	return nil
}

func (f *fakeAssetRepo) CountByFolder(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) ([]types.FolderCount, error) {
	return nil, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	submits []render.JobRequest
	failAt  map[int]error // submit index -> error
}

func (f *fakeRenderer) Submit(ctx context.Context, req render.JobRequest) (render.JobRef, error) {
	f.mu.Lock()
	idx := len(f.submits)
	f.submits = append(f.submits, req)
	f.mu.Unlock()
	if err, ok := f.failAt[idx]; ok {
		return render.JobRef{}, err
	}
	return render.JobRef{JobID: fmt.Sprintf("job-%d", idx)}, nil
}

func (f *fakeRenderer) Cancel(ctx context.Context, jobID string) error { return nil }

type recordingProgress struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (r *recordingProgress) ApplyEvent(ctx context.Context, ev types.ProgressEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true, nil
}

func (r *recordingProgress) Fetch(ctx context.Context, ids []uuid.UUID) (types.BatchSummary, error) {
	return types.BatchSummary{}, nil
}

func fanoutFixture(t *testing.T, variantCount int) (*fanoutService, *types.Project, []*types.Section, *fakeVariantRepo, *fakeRenderer, *recordingProgress) {
	t.Helper()

	sections := make([]*types.Section, 0, 4)
	assignments := types.AssignmentSet{}
	assets := map[uuid.UUID]*types.Asset{}
	for i := 0; i < 4; i++ {
		sec := &types.Section{ID: uuid.New(), Type: types.SectionTypeHook, Text: fmt.Sprintf("line %d", i), OrderIndex: i}
		sections = append(sections, sec)
		asset := &types.Asset{ID: uuid.New(), StorageKey: fmt.Sprintf("assets/%d.mp4", i)}
		assets[asset.ID] = asset
		id := asset.ID
		assignments[sec.ID] = &id
	}

	encoded, err := types.EncodeAssignments(assignments)
	if err != nil {
		t.Fatalf("encode assignments: %v", err)
	}
	project := &types.Project{
		ID:           uuid.New(),
		AnalysisID:   uuid.New(),
		BrandID:      uuid.New(),
		Assignments:  encoded,
		VoiceID:      "voice-1",
		VoiceoverKey: "voiceovers/p/track.mp3",
		VariantCount: variantCount,
		Status:       types.ProjectStatusCreated,
	}

	variantRepo := newFakeVariantRepo()
	renderer := &fakeRenderer{failAt: map[int]error{}}
	progress := &recordingProgress{}

	svc := &fanoutService{
		log:         testLogger(t),
		variantRepo: variantRepo,
		assetRepo:   &fakeAssetRepo{assets: assets},
		renderer:    renderer,
		progress:    progress,
		callbackURL: "https://api.example.com/api/render/callback",
		concurrency: 2,
	}
	return svc, project, sections, variantRepo, renderer, progress
}

func TestFanoutCreatesDistinctQueuedVariants(t *testing.T) {
	svc, project, sections, variantRepo, _, _ := fanoutFixture(t, 3)

	variants, err := svc.Dispatch(context.Background(), project, sections)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("variants: want=3 got=%d", len(variants))
	}
	seen := map[uuid.UUID]bool{}
	for _, v := range variants {
		if v.ProjectID != project.ID {
			t.Fatalf("variant project: got %s", v.ProjectID)
		}
		if seen[v.ID] {
			t.Fatalf("duplicate variant id %s", v.ID)
		}
		seen[v.ID] = true
	}
	if len(variantRepo.created) != 3 {
		t.Fatalf("created rows: want=3 got=%d", len(variantRepo.created))
	}
}

func TestFanoutSubmitAllDistinctSeeds(t *testing.T) {
	svc, project, sections, variantRepo, renderer, _ := fanoutFixture(t, 3)

	rows := make([]*types.Variant, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, &types.Variant{ProjectID: project.ID, Status: types.VariantStatusQueued})
	}
	variants, err := variantRepo.CreateBatch(context.Background(), nil, rows)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	clips, err := svc.buildClips(context.Background(), project, sections)
	if err != nil {
		t.Fatalf("buildClips: %v", err)
	}

	svc.submitAll(context.Background(), project, variants, clips)

	if len(renderer.submits) != 3 {
		t.Fatalf("submits: want=3 got=%d", len(renderer.submits))
	}
	seeds := map[int]bool{}
	for _, req := range renderer.submits {
		if len(req.Clips) != 4 {
			t.Fatalf("clips per job: want=4 got=%d", len(req.Clips))
		}
		if req.VoiceoverKey != project.VoiceoverKey {
			t.Fatalf("voiceover key: got %q", req.VoiceoverKey)
		}
		seeds[req.Seed] = true
	}
	if len(seeds) != 3 {
		t.Fatalf("seeds must be distinct per variant, got %v", seeds)
	}
	for _, v := range variants {
		if v.Status != types.VariantStatusRendering {
			t.Fatalf("variant %s: want=rendering got=%s", v.ID, v.Status)
		}
		if v.RenderJobRef == "" {
			t.Fatalf("variant %s has no job ref", v.ID)
		}
	}
}

func TestFanoutSubmitFailureIsIsolated(t *testing.T) {
	svc, project, sections, variantRepo, renderer, progress := fanoutFixture(t, 3)
	svc.concurrency = 1 // deterministic submit order
	renderer.failAt[1] = errors.New("farm rejected the job")

	rows := make([]*types.Variant, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, &types.Variant{ProjectID: project.ID, Status: types.VariantStatusQueued})
	}
	variants, _ := variantRepo.CreateBatch(context.Background(), nil, rows)
	clips, err := svc.buildClips(context.Background(), project, sections)
	if err != nil {
		t.Fatalf("buildClips: %v", err)
	}

	svc.submitAll(context.Background(), project, variants, clips)

	if len(renderer.submits) != 3 {
		t.Fatalf("failure must not stop sibling submissions: submits=%d", len(renderer.submits))
	}
	if len(progress.events) != 1 {
		t.Fatalf("failure events: want=1 got=%d", len(progress.events))
	}
	ev := progress.events[0]
	if ev.Status != types.VariantStatusFailed {
		t.Fatalf("event status: got %s", ev.Status)
	}
	if ev.VariantID != variants[1].ID {
		t.Fatalf("failed wrong variant: got %s", ev.VariantID)
	}
	if want := apperr.CodeRenderSubmitRejected; len(ev.Error) == 0 || ev.Error[:len(want)] != want {
		t.Fatalf("error must carry code %s, got %q", want, ev.Error)
	}
}

func TestFanoutRejectsUnboundAssignments(t *testing.T) {
	svc, project, sections, _, _, _ := fanoutFixture(t, 2)
	set, err := project.DecodeAssignments()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	set[sections[2].ID] = nil
	project.Assignments, err = types.EncodeAssignments(set)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := svc.Dispatch(context.Background(), project, sections); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestFanoutRequiresVoiceover(t *testing.T) {
	svc, project, sections, _, _, _ := fanoutFixture(t, 2)
	project.VoiceoverKey = ""
	if _, err := svc.Dispatch(context.Background(), project, sections); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
