package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssignmentSet maps section id -> chosen asset id. A nil value means the
// section is not yet bound. No variant may render while any binding is nil.
type AssignmentSet map[uuid.UUID]*uuid.UUID

// FullyBound reports whether every given section has a non-nil asset binding.
func (s AssignmentSet) FullyBound(sections []*Section) bool {
	return len(s.Unbound(sections)) == 0
}

// Unbound returns the section ids with a missing or nil binding, in section order.
func (s AssignmentSet) Unbound(sections []*Section) []uuid.UUID {
	var out []uuid.UUID
	for _, sec := range sections {
		assetID, ok := s[sec.ID]
		if !ok || assetID == nil || *assetID == uuid.Nil {
			out = append(out, sec.ID)
		}
	}
	return out
}

type ProjectStatus string

const (
	ProjectStatusCreated   ProjectStatus = "created"
	ProjectStatusRendering ProjectStatus = "rendering"
	ProjectStatusDone      ProjectStatus = "done"
)

// Project is the durable record of one approved pipeline run. Created exactly
// once at approval; identity immutable, status advances as variants complete.
type Project struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AnalysisID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"analysis_id"`
	BrandID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"brand_id"`
	Assignments     datatypes.JSON `gorm:"column:assignments;type:jsonb;not null" json:"assignments"`
	VoiceID         string         `gorm:"column:voice_id;not null" json:"voice_id"`
	VoiceStability  float64        `gorm:"column:voice_stability" json:"voice_stability"`
	VoiceSimilarity float64        `gorm:"column:voice_similarity" json:"voice_similarity"`
	VoiceStyle      float64        `gorm:"column:voice_style" json:"voice_style"`
	VoiceoverKey    string         `gorm:"column:voiceover_key" json:"voiceover_key,omitempty"`
	VariantCount    int            `gorm:"column:variant_count;not null" json:"variant_count"`
	Status          ProjectStatus  `gorm:"column:status;not null;index" json:"status"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }

func (p *Project) DecodeAssignments() (AssignmentSet, error) {
	set := AssignmentSet{}
	if len(p.Assignments) == 0 {
		return set, nil
	}
	if err := json.Unmarshal(p.Assignments, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func EncodeAssignments(set AssignmentSet) (datatypes.JSON, error) {
	b, err := json.Marshal(set)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
