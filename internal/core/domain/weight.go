package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeightEntry is the learned preference for one (parameter, value) pair in one session
type WeightEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SessionID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_weights_session_param_value,priority:1" json:"session_id"`
	ParameterName  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_weights_session_param_value,priority:2" json:"parameter_name"`
	ParameterValue string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_weights_session_param_value,priority:3" json:"parameter_value"`
	Weight         float64   `gorm:"type:double precision;not null;default:100;check:chk_weight_bounds,weight >= 0 AND weight <= 200" json:"weight"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// TableName specifies the table name for GORM
func (WeightEntry) TableName() string {
	return "parameter_weights"
}

// BeforeCreate GORM hook
func (w *WeightEntry) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Key returns the (parameter, value) key of the entry
func (w WeightEntry) Key() ParameterKey {
	return ParameterKey{Parameter: w.ParameterName, Value: w.ParameterValue}
}

// ParameterKey identifies a (parameter, value) pair
type ParameterKey struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// WeightChange records one weight mutation
type WeightChange struct {
	Parameter string  `json:"parameter"`
	Value     string  `json:"value"`
	OldWeight float64 `json:"old_weight"`
	NewWeight float64 `json:"new_weight"`
}
