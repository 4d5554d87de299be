package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

type BrandRepo interface {
	Create(ctx context.Context, tx *gorm.DB, brand *types.Brand) (*types.Brand, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Brand, error)
}

type brandRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBrandRepo(db *gorm.DB, baseLog *logger.Logger) BrandRepo {
	return &brandRepo{db: db, log: baseLog.With("repo", "BrandRepo")}
}

func (r *brandRepo) Create(ctx context.Context, tx *gorm.DB, brand *types.Brand) (*types.Brand, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(brand).Error; err != nil {
		return nil, err
	}
	return brand, nil
}

func (r *brandRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Brand, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var brand types.Brand
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&brand).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &brand, nil
}
