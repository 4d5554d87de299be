package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/repos"
	"github.com/lalocmtz/adbroll-backend/internal/types"
	"github.com/lalocmtz/adbroll-backend/internal/workflow"
)

// CatalogService exposes the brand's clip library: folder snapshots for the
// assignment UI, moves between folders, and the feasibility check over a
// script.
type CatalogService interface {
	Snapshot(ctx context.Context, brandID uuid.UUID) (types.CatalogSnapshot, error)
	MoveAsset(ctx context.Context, assetID, folderID uuid.UUID) error
	Validate(ctx context.Context, brandID, analysisID uuid.UUID) (types.Feasibility, error)
}

type catalogService struct {
	log         *logger.Logger
	folderRepo  repos.AssetFolderRepo
	assetRepo   repos.AssetRepo
	sectionRepo repos.SectionRepo
}

func NewCatalogService(
	baseLog *logger.Logger,
	folderRepo repos.AssetFolderRepo,
	assetRepo repos.AssetRepo,
	sectionRepo repos.SectionRepo,
) CatalogService {
	return &catalogService{
		log:         baseLog.With("service", "CatalogService"),
		folderRepo:  folderRepo,
		assetRepo:   assetRepo,
		sectionRepo: sectionRepo,
	}
}

func (s *catalogService) Snapshot(ctx context.Context, brandID uuid.UUID) (types.CatalogSnapshot, error) {
	if brandID == uuid.Nil {
		return types.CatalogSnapshot{}, fmt.Errorf("%w: brand id required", apperr.ErrInvalidArgument)
	}
	counts, err := s.assetRepo.CountByFolder(ctx, nil, brandID)
	if err != nil {
		return types.CatalogSnapshot{}, fmt.Errorf("count by folder: %w", err)
	}
	return types.CatalogSnapshot{BrandID: brandID, Folders: counts}, nil
}

// MoveAsset verifies the destination folder exists before the move; a move to
// a missing folder would silently strand the asset.
func (s *catalogService) MoveAsset(ctx context.Context, assetID, folderID uuid.UUID) error {
	if assetID == uuid.Nil || folderID == uuid.Nil {
		return fmt.Errorf("%w: asset and folder ids required", apperr.ErrInvalidArgument)
	}
	if _, err := s.folderRepo.GetByID(ctx, nil, folderID); err != nil {
		return fmt.Errorf("destination folder: %w", err)
	}
	if err := s.assetRepo.Move(ctx, nil, assetID, folderID); err != nil {
		return fmt.Errorf("move asset: %w", err)
	}
	return nil
}

func (s *catalogService) Validate(ctx context.Context, brandID, analysisID uuid.UUID) (types.Feasibility, error) {
	snapshot, err := s.Snapshot(ctx, brandID)
	if err != nil {
		return types.Feasibility{}, err
	}
	sections, err := s.sectionRepo.ListByAnalysis(ctx, nil, analysisID)
	if err != nil {
		return types.Feasibility{}, fmt.Errorf("list sections: %w", err)
	}
	return workflow.ValidateAssignments(sections, snapshot), nil
}
