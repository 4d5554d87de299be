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

type AnalysisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, analysis *types.Analysis) (*types.Analysis, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Analysis, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) Create(ctx context.Context, tx *gorm.DB, analysis *types.Analysis) (*types.Analysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(analysis).Error; err != nil {
		return nil, err
	}
	return analysis, nil
}

func (r *analysisRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Analysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var analysis types.Analysis
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Analysis{}).
		Where("id = ?", id).
		Updates(updates).Error
}
