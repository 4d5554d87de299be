package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VariantStatus string

const (
	VariantStatusQueued    VariantStatus = "queued"
	VariantStatusRendering VariantStatus = "rendering"
	VariantStatusCompleted VariantStatus = "completed"
	VariantStatusFailed    VariantStatus = "failed"
)

func (s VariantStatus) Terminal() bool {
	return s == VariantStatusCompleted || s == VariantStatusFailed
}

// Variant is one render job of a project batch. Lifecycles are independent
// after creation: one variant failing never alters its siblings.
type Variant struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	Status          VariantStatus  `gorm:"column:status;not null;index" json:"status"`
	ProgressPercent int            `gorm:"column:progress_percent;not null;default:0" json:"progress_percent"`
	ProgressMessage string         `gorm:"column:progress_message" json:"progress_message,omitempty"`
	RenderJobRef    string         `gorm:"column:render_job_ref;index" json:"render_job_ref,omitempty"`
	VideoKey        string         `gorm:"column:video_key" json:"video_key,omitempty"`
	SubtitleKey     string         `gorm:"column:subtitle_key" json:"subtitle_key,omitempty"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Variant) TableName() string { return "variant" }
