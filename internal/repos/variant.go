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

type VariantRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, variants []*types.Variant) ([]*types.Variant, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Variant, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Variant, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Variant, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	ApplyProgress(ctx context.Context, tx *gorm.DB, ev types.ProgressEvent) (bool, error)
}

type variantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVariantRepo(db *gorm.DB, baseLog *logger.Logger) VariantRepo {
	return &variantRepo{db: db, log: baseLog.With("repo", "VariantRepo")}
}

func (r *variantRepo) CreateBatch(ctx context.Context, tx *gorm.DB, variants []*types.Variant) ([]*types.Variant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(variants) == 0 {
		return []*types.Variant{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *variantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Variant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var variant types.Variant
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *variantRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Variant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Variant
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

func (r *variantRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Variant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Variant
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *variantRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Variant{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ApplyProgress applies one push event onto the variant row. Delivery is
// at-least-once and unordered, so the guard makes application idempotent and
// monotonic: terminal rows are never overwritten, and a non-terminal event
// with a lower percent than the row already shows is dropped. Returns whether
// the row changed.
func (r *variantRepo) ApplyProgress(ctx context.Context, tx *gorm.DB, ev types.ProgressEvent) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ev.VariantID == uuid.Nil {
		return false, nil
	}
	now := time.Now()

	updates := map[string]interface{}{
		"status":           ev.Status,
		"progress_percent": ev.Percent,
		"progress_message": ev.Message,
		"updated_at":       now,
	}
	if ev.Status == types.VariantStatusCompleted {
		updates["progress_percent"] = 100
		updates["video_key"] = ev.VideoKey
		updates["subtitle_key"] = ev.SubtitleKey
	}
	if ev.Status == types.VariantStatusFailed {
		updates["error"] = ev.Error
	}

	q := transaction.WithContext(ctx).
		Model(&types.Variant{}).
		Where("id = ? AND status NOT IN ?", ev.VariantID,
			[]types.VariantStatus{types.VariantStatusCompleted, types.VariantStatusFailed})
	if !ev.Status.Terminal() {
		q = q.Where("progress_percent <= ?", ev.Percent)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
