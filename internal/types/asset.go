package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetFolder groups a brand's clips by section-type category.
type AssetFolder struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BrandID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"brand_id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssetFolder) TableName() string { return "asset_folder" }

// Asset is one media clip. It belongs to exactly one folder at a time.
type Asset struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FolderID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"folder_id"`
	DisplayName     string         `gorm:"column:display_name;not null" json:"display_name"`
	StorageKey      string         `gorm:"column:storage_key;not null" json:"storage_key"`
	DurationSeconds float64        `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Asset) TableName() string { return "asset" }
