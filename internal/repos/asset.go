package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type AssetFolderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, folder *types.AssetFolder) (*types.AssetFolder, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetFolder, error)
	ListByBrand(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) ([]*types.AssetFolder, error)
}

type assetFolderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetFolderRepo(db *gorm.DB, baseLog *logger.Logger) AssetFolderRepo {
	return &assetFolderRepo{db: db, log: baseLog.With("repo", "AssetFolderRepo")}
}

func (r *assetFolderRepo) Create(ctx context.Context, tx *gorm.DB, folder *types.AssetFolder) (*types.AssetFolder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(folder).Error; err != nil {
		return nil, err
	}
	return folder, nil
}

func (r *assetFolderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetFolder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var folder types.AssetFolder
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&folder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (r *assetFolderRepo) ListByBrand(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) ([]*types.AssetFolder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssetFolder
	if err := transaction.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type AssetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, asset *types.Asset) (*types.Asset, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error)
	ListByFolder(ctx context.Context, tx *gorm.DB, folderID uuid.UUID) ([]*types.Asset, error)
	Move(ctx context.Context, tx *gorm.DB, assetID, folderID uuid.UUID) error
	CountByFolder(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) ([]types.FolderCount, error)
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{db: db, log: baseLog.With("repo", "AssetRepo")}
}

func (r *assetRepo) Create(ctx context.Context, tx *gorm.DB, asset *types.Asset) (*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

func (r *assetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Asset
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) ListByFolder(ctx context.Context, tx *gorm.DB, folderID uuid.UUID) ([]*types.Asset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Asset
	if err := transaction.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetRepo) Move(ctx context.Context, tx *gorm.DB, assetID, folderID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Asset{}).
		Where("id = ?", assetID).
		Updates(map[string]interface{}{
			"folder_id":  folderID,
			"updated_at": time.Now(),
		}).Error
}

// CountByFolder returns every folder of the brand with its asset count,
// including empty folders (the validator flags those by name).
func (r *assetRepo) CountByFolder(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) ([]types.FolderCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.FolderCount
	err := transaction.WithContext(ctx).
		Table("asset_folder").
		Select("asset_folder.id AS folder_id, asset_folder.name AS name, COUNT(asset.id) AS asset_count").
		Joins("LEFT JOIN asset ON asset.folder_id = asset_folder.id AND asset.deleted_at IS NULL").
		Where("asset_folder.brand_id = ? AND asset_folder.deleted_at IS NULL", brandID).
		Group("asset_folder.id, asset_folder.name").
		Order("MIN(asset_folder.created_at) ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
