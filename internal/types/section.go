package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SectionType string

const (
	SectionTypeHook      SectionType = "hook"
	SectionTypeProblem   SectionType = "problem"
	SectionTypeAgitation SectionType = "agitation"
	SectionTypeSolution  SectionType = "solution"
	SectionTypeProduct   SectionType = "product"
	SectionTypeDemo      SectionType = "demo"
	SectionTypeBenefit   SectionType = "benefit"
	SectionTypeObjection SectionType = "objection"
	SectionTypeCTA       SectionType = "cta"
	SectionTypeCustom    SectionType = "custom"
)

var sectionTypes = map[SectionType]bool{
	SectionTypeHook:      true,
	SectionTypeProblem:   true,
	SectionTypeAgitation: true,
	SectionTypeSolution:  true,
	SectionTypeProduct:   true,
	SectionTypeDemo:      true,
	SectionTypeBenefit:   true,
	SectionTypeObjection: true,
	SectionTypeCTA:       true,
	SectionTypeCustom:    true,
}

func (t SectionType) Valid() bool { return sectionTypes[t] }

// NormalizeSectionType maps unknown model output onto the custom bucket.
func NormalizeSectionType(raw string) SectionType {
	t := SectionType(raw)
	if t.Valid() {
		return t
	}
	return SectionTypeCustom
}

// Section is an ordered narrative unit of an analysis's script. Immutable once
// the parent analysis is approved into a project, except operator text edits
// before approval.
type Section struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AnalysisID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"analysis_id"`
	Type            SectionType    `gorm:"column:type;not null" json:"type"`
	Text            string         `gorm:"column:text;type:text;not null" json:"text"`
	ExpectedSeconds float64        `gorm:"column:expected_seconds" json:"expected_seconds,omitempty"`
	OrderIndex      int            `gorm:"column:order_index;not null;index" json:"order_index"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Section) TableName() string { return "section" }
