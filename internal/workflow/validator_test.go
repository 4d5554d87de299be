package workflow

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/types"
)

func sections(n int) []*types.Section {
	out := make([]*types.Section, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.Section{ID: uuid.New(), Type: types.SectionTypeHook, OrderIndex: i})
	}
	return out
}

func TestValidateAssignmentsEmptyCatalog(t *testing.T) {
	got := ValidateAssignments(sections(5), types.CatalogSnapshot{})
	if got.Ready {
		t.Fatalf("empty catalog: want ready=false")
	}
	joined := strings.Join(got.Warnings, "\n")
	if !strings.Contains(joined, "no asset folders") {
		t.Fatalf("missing no-folders warning, got %q", joined)
	}
	if !strings.Contains(joined, "0 of 5") {
		t.Fatalf("missing shortage warning citing 0 of 5, got %q", joined)
	}
}

func TestValidateAssignmentsFlagsEmptyFoldersByName(t *testing.T) {
	snap := types.CatalogSnapshot{
		Folders: []types.FolderCount{
			{FolderID: uuid.New(), Name: "hooks", AssetCount: 3},
			{FolderID: uuid.New(), Name: "demos", AssetCount: 0},
			{FolderID: uuid.New(), Name: "ctas", AssetCount: 0},
		},
	}
	got := ValidateAssignments(sections(2), snap)
	if got.Ready {
		t.Fatalf("empty folders: want ready=false")
	}
	joined := strings.Join(got.Warnings, "\n")
	if !strings.Contains(joined, `"demos"`) || !strings.Contains(joined, `"ctas"`) {
		t.Fatalf("empty folders not named, got %q", joined)
	}
	if strings.Contains(joined, `"hooks"`) {
		t.Fatalf("non-empty folder flagged, got %q", joined)
	}
}

func TestValidateAssignmentsShortage(t *testing.T) {
	snap := types.CatalogSnapshot{
		Folders: []types.FolderCount{
			{FolderID: uuid.New(), Name: "hooks", AssetCount: 2},
			{FolderID: uuid.New(), Name: "demos", AssetCount: 1},
		},
	}
	got := ValidateAssignments(sections(6), snap)
	if got.Ready {
		t.Fatalf("shortage: want ready=false")
	}
	joined := strings.Join(got.Warnings, "\n")
	if !strings.Contains(joined, "3 of 6") {
		t.Fatalf("shortage warning must cite both numbers, got %q", joined)
	}
}

func TestValidateAssignmentsReady(t *testing.T) {
	snap := types.CatalogSnapshot{
		Folders: []types.FolderCount{
			{FolderID: uuid.New(), Name: "hooks", AssetCount: 4},
			{FolderID: uuid.New(), Name: "demos", AssetCount: 2},
		},
	}
	got := ValidateAssignments(sections(4), snap)
	if !got.Ready {
		t.Fatalf("want ready=true, warnings=%v", got.Warnings)
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("want no warnings, got %v", got.Warnings)
	}
}

func TestValidateAssignmentsZeroSections(t *testing.T) {
	snap := types.CatalogSnapshot{
		Folders: []types.FolderCount{
			{FolderID: uuid.New(), Name: "hooks", AssetCount: 1},
		},
	}
	got := ValidateAssignments(nil, snap)
	if !got.Ready {
		t.Fatalf("no sections against a stocked catalog: want ready=true, got warnings=%v", got.Warnings)
	}
}
