package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/types"
)

func SeedBrand(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Brand {
	tb.Helper()
	b := &types.Brand{
		ID:   uuid.New(),
		Name: name,
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		tb.Fatalf("seed brand: %v", err)
	}
	return b
}

func SeedAnalysis(tb testing.TB, ctx context.Context, tx *gorm.DB, brandID uuid.UUID, status types.AnalysisStatus) *types.Analysis {
	tb.Helper()
	a := &types.Analysis{
		ID:        uuid.New(),
		BrandID:   brandID,
		SourceURL: "https://example.com/source.mp4",
		Status:    status,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed analysis: %v", err)
	}
	return a
}

func SeedFolder(tb testing.TB, ctx context.Context, tx *gorm.DB, brandID uuid.UUID, name string) *types.AssetFolder {
	tb.Helper()
	f := &types.AssetFolder{
		ID:      uuid.New(),
		BrandID: brandID,
		Name:    name,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed folder: %v", err)
	}
	return f
}

func SeedAsset(tb testing.TB, ctx context.Context, tx *gorm.DB, folderID uuid.UUID, name string) *types.Asset {
	tb.Helper()
	a := &types.Asset{
		ID:          uuid.New(),
		FolderID:    folderID,
		DisplayName: name,
		StorageKey:  "assets/" + name + ".mp4",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed asset: %v", err)
	}
	return a
}

func SeedVariant(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status types.VariantStatus) *types.Variant {
	tb.Helper()
	v := &types.Variant{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    status,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed variant: %v", err)
	}
	return v
}
