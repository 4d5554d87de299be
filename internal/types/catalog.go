package types

import "github.com/google/uuid"

// FolderCount is one row of a catalog snapshot: a folder and how many assets it holds.
type FolderCount struct {
	FolderID   uuid.UUID `json:"folder_id"`
	Name       string    `json:"name"`
	AssetCount int       `json:"asset_count"`
}

// CatalogSnapshot is a read-only view over a brand's asset folders, taken at a
// point in time and used for feasibility checks.
type CatalogSnapshot struct {
	BrandID uuid.UUID     `json:"brand_id"`
	Folders []FolderCount `json:"folders"`
}

func (s CatalogSnapshot) TotalAssets() int {
	total := 0
	for _, f := range s.Folders {
		total += f.AssetCount
	}
	return total
}

// Feasibility is the validator's verdict. Warnings are advisory: the operator
// may proceed anyway.
type Feasibility struct {
	Ready    bool     `json:"ready"`
	Warnings []string `json:"warnings"`
}
