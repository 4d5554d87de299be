package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/repos/testutil"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

func TestVariantRepoApplyProgressMonotonic(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewVariantRepo(db, testutil.Logger(t))

	projectID := uuid.New()
	v := testutil.SeedVariant(t, ctx, tx, projectID, types.VariantStatusQueued)

	applied, err := repo.ApplyProgress(ctx, tx, types.ProgressEvent{
		VariantID: v.ID, ProjectID: projectID,
		Status: types.VariantStatusRendering, Percent: 40, Message: "compositing",
	})
	if err != nil {
		t.Fatalf("ApplyProgress: %v", err)
	}
	if !applied {
		t.Fatalf("ApplyProgress: expected first event to apply")
	}

	// Stale lower-percent event arrives late: must be dropped.
	applied, err = repo.ApplyProgress(ctx, tx, types.ProgressEvent{
		VariantID: v.ID, ProjectID: projectID,
		Status: types.VariantStatusRendering, Percent: 10, Message: "stale",
	})
	if err != nil {
		t.Fatalf("ApplyProgress stale: %v", err)
	}
	if applied {
		t.Fatalf("ApplyProgress: stale lower-percent event must not apply")
	}

	got, err := repo.GetByID(ctx, tx, v.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ProgressPercent != 40 || got.ProgressMessage != "compositing" {
		t.Fatalf("progress regressed: percent=%d message=%q", got.ProgressPercent, got.ProgressMessage)
	}

	// Completion lands, with artifacts.
	applied, err = repo.ApplyProgress(ctx, tx, types.ProgressEvent{
		VariantID: v.ID, ProjectID: projectID,
		Status: types.VariantStatusCompleted, Percent: 100,
		VideoKey: "renders/out.mp4", SubtitleKey: "renders/out.srt",
	})
	if err != nil || !applied {
		t.Fatalf("ApplyProgress completed: applied=%v err=%v", applied, err)
	}

	// Duplicate delivery and a late "rendering" event must both be no-ops.
	for _, ev := range []types.ProgressEvent{
		{VariantID: v.ID, Status: types.VariantStatusCompleted, Percent: 100},
		{VariantID: v.ID, Status: types.VariantStatusRendering, Percent: 99},
	} {
		applied, err = repo.ApplyProgress(ctx, tx, ev)
		if err != nil {
			t.Fatalf("ApplyProgress after terminal: %v", err)
		}
		if applied {
			t.Fatalf("ApplyProgress: terminal variant must not be overwritten (event status=%s)", ev.Status)
		}
	}

	got, err = repo.GetByID(ctx, tx, v.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.VariantStatusCompleted || got.VideoKey != "renders/out.mp4" {
		t.Fatalf("terminal state lost: status=%s video=%q", got.Status, got.VideoKey)
	}
}

func TestVariantRepoCreateBatch(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewVariantRepo(db, testutil.Logger(t))

	projectID := uuid.New()
	batch := make([]*types.Variant, 0, 3)
	for i := 0; i < 3; i++ {
		batch = append(batch, &types.Variant{
			ID:        uuid.New(),
			ProjectID: projectID,
			Status:    types.VariantStatusQueued,
		})
	}
	created, err := repo.CreateBatch(ctx, tx, batch)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("CreateBatch: want=3 got=%d", len(created))
	}

	rows, err := repo.ListByProject(ctx, tx, projectID)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ListByProject: want=3 got=%d", len(rows))
	}
	seen := map[uuid.UUID]bool{}
	for _, v := range rows {
		if seen[v.ID] {
			t.Fatalf("duplicate variant id %s", v.ID)
		}
		seen[v.ID] = true
	}
}
