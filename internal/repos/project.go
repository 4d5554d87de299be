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

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)
	GetByAnalysis(ctx context.Context, tx *gorm.DB, analysisID uuid.UUID) (*types.Project, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	// The unique index on analysis_id makes "created exactly once" a DB
	// invariant, not just a state machine one.
	if err := transaction.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var project types.Project
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) GetByAnalysis(ctx context.Context, tx *gorm.DB, analysisID uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var project types.Project
	err := transaction.WithContext(ctx).Where("analysis_id = ?", analysisID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Project{}).
		Where("id = ?", id).
		Updates(updates).Error
}
