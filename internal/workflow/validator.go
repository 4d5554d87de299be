package workflow

import (
	"fmt"

	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// ValidateAssignments checks whether the catalog plausibly covers the script:
// no folders at all, any empty folder, or fewer total assets than sections
// each produce a warning. This is a conservative aggregate heuristic, not a
// per-section matching guarantee; warnings are advisory and the operator may
// proceed anyway. Pure function over its two inputs; re-run whenever the
// catalog or section list changes.
func ValidateAssignments(sections []*types.Section, snapshot types.CatalogSnapshot) types.Feasibility {
	warnings := []string{}

	if len(snapshot.Folders) == 0 {
		warnings = append(warnings, "no asset folders exist for this brand")
	}
	for _, f := range snapshot.Folders {
		if f.AssetCount == 0 {
			warnings = append(warnings, fmt.Sprintf("folder %q has no assets", f.Name))
		}
	}

	need := len(sections)
	have := snapshot.TotalAssets()
	if have < need {
		warnings = append(warnings, fmt.Sprintf("not enough assets to cover every section: %d of %d", have, need))
	}

	return types.Feasibility{
		Ready:    len(warnings) == 0,
		Warnings: warnings,
	}
}
