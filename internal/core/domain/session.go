package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatingCategory is the reserved category served by the fixed taxonomy
const DatingCategory = "dating"

// Session is one generation workspace inside a project.
// Its taxonomy is fixed at creation and never changes afterwards.
type Session struct {
	ID         uuid.UUID                     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProjectID  uuid.UUID                     `gorm:"type:uuid;not null;index:idx_sessions_project_created,priority:1" json:"project_id"`
	UserID     string                        `gorm:"type:varchar(255);index:idx_sessions_user" json:"user_id,omitempty"`
	Name       string                        `gorm:"type:varchar(255)" json:"name"`
	Category   string                        `gorm:"type:varchar(100);not null" json:"category"`
	UserIntent string                        `gorm:"type:text" json:"user_intent,omitempty"`
	Categories datatypes.JSONSlice[Category] `gorm:"column:taxonomy;not null" json:"-"` // array form keeps category order in JSONB
	CreatedAt  time.Time                     `gorm:"autoCreateTime;index:idx_sessions_project_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time                     `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Project     *Project      `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Weights     []WeightEntry `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"weights,omitempty"`
	Generations []Generation  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"generations,omitempty"`
}

// TableName specifies the table name for GORM
func (Session) TableName() string {
	return "sessions"
}

// BeforeCreate GORM hook
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// GetTaxonomy returns the session's taxonomy
func (s *Session) GetTaxonomy() Taxonomy {
	return NewTaxonomy(s.Categories...)
}

// SetTaxonomy stores a copy of t on the session
func (s *Session) SetTaxonomy(t Taxonomy) {
	s.Categories = datatypes.JSONSlice[Category](t.Clone().Categories)
}

// MarshalJSON renders the taxonomy as its ordered object form
func (s Session) MarshalJSON() ([]byte, error) {
	type session Session
	return json.Marshal(struct {
		session
		Taxonomy Taxonomy `json:"taxonomy"`
	}{session(s), s.GetTaxonomy()})
}

// IsDatingCategory reports whether category selects the fixed taxonomy
func IsDatingCategory(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), DatingCategory)
}
