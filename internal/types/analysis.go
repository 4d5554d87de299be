package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnalysisStatus string

const (
	AnalysisStatusPending     AnalysisStatus = "pending"
	AnalysisStatusProcessing  AnalysisStatus = "processing"
	AnalysisStatusTranscribed AnalysisStatus = "transcribed"
	AnalysisStatusCompleted   AnalysisStatus = "completed"
	AnalysisStatusFailed      AnalysisStatus = "failed"
)

func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisStatusCompleted || s == AnalysisStatusFailed
}

// Analysis is the durable record for one source video. Single-writer invariant:
// after creation only the analyze job mutates it, via the coordinator.
type Analysis struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BrandID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"brand_id"`
	SourceURL       string         `gorm:"column:source_url" json:"source_url,omitempty"`
	StorageKey      string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	Status          AnalysisStatus `gorm:"column:status;not null;index" json:"status"`
	Transcript      string         `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	DurationSeconds float64        `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Analysis) TableName() string { return "analysis" }
