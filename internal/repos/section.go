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

type SectionRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, sections []*types.Section) ([]*types.Section, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Section, error)
	ListByAnalysis(ctx context.Context, tx *gorm.DB, analysisID uuid.UUID) ([]*types.Section, error)
	UpdateText(ctx context.Context, tx *gorm.DB, id uuid.UUID, text string) error
}

type sectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return &sectionRepo{db: db, log: baseLog.With("repo", "SectionRepo")}
}

func (r *sectionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, sections []*types.Section) ([]*types.Section, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sections) == 0 {
		return []*types.Section{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}

func (r *sectionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Section, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var section types.Section
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&section).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *sectionRepo) ListByAnalysis(ctx context.Context, tx *gorm.DB, analysisID uuid.UUID) ([]*types.Section, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Section
	if err := transaction.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("order_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sectionRepo) UpdateText(ctx context.Context, tx *gorm.DB, id uuid.UUID, text string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Section{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"text":       text,
			"updated_at": time.Now(),
		}).Error
}
