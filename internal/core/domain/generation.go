package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrSnapshotImmutable is returned when an update tries to rewrite a parameter snapshot
var ErrSnapshotImmutable = errors.New("parameters_used snapshot is immutable")

// ParameterUse is one pinned (parameter, value, weight-at-selection) triple
type ParameterUse struct {
	Parameter string  `json:"parameter"`
	Value     string  `json:"value"`
	Weight    float64 `json:"weight"`
}

// Generation is one produced content item and the parameters that produced it
type Generation struct {
	ID             uuid.UUID                         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SessionID      uuid.UUID                         `gorm:"type:uuid;not null;index:idx_generations_session_rated,priority:1;index:idx_generations_session_created,priority:1" json:"session_id"`
	ProjectID      uuid.UUID                         `gorm:"type:uuid;not null;index:idx_generations_project" json:"project_id"`
	UserID         string                            `gorm:"type:varchar(255)" json:"user_id,omitempty"`
	OriginalPrompt string                            `gorm:"type:text;not null" json:"original_prompt"`
	FinalPrompt    string                            `gorm:"type:text" json:"final_prompt"`
	Model          string                            `gorm:"type:varchar(100)" json:"model,omitempty"`
	AssetURL       string                            `gorm:"type:text" json:"asset_url,omitempty"`
	AssetPath      string                            `gorm:"type:text" json:"-"`
	ParametersUsed datatypes.JSONSlice[ParameterUse] `json:"parameters_used"`
	Rating         *int                              `json:"rating,omitempty"`
	RatingScale    RatingScale                       `gorm:"type:varchar(20);not null;default:'signed'" json:"rating_scale"`
	Comment        string                            `gorm:"type:text" json:"comment,omitempty"`
	AppliedDeltas  datatypes.JSONSlice[WeightDelta]  `json:"applied_deltas,omitempty"`
	CreatedAt      time.Time                         `gorm:"autoCreateTime;index:idx_generations_session_created,priority:2" json:"created_at"`
	RatedAt        *time.Time                        `gorm:"index:idx_generations_session_rated,priority:2" json:"rated_at,omitempty"`

	// Relations
	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// TableName specifies the table name for GORM
func (Generation) TableName() string {
	return "generations"
}

// BeforeCreate GORM hook
func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.RatingScale == "" {
		g.RatingScale = ScaleSigned
	}
	return nil
}

// BeforeUpdate GORM hook - the snapshot is the basis for weight attribution
func (g *Generation) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("ParametersUsed") {
		return ErrSnapshotImmutable
	}
	return nil
}

// HasSnapshot reports whether the generation carries a parameters-used snapshot
func (g *Generation) HasSnapshot() bool {
	return len(g.ParametersUsed) > 0
}

// IsRated reports whether a rating has been recorded
func (g *Generation) IsRated() bool {
	return g.Rating != nil
}

// Sentiment classifies the generation's rating on its own scale
func (g *Generation) Sentiment() Sentiment {
	if g.Rating == nil {
		return SentimentNeutral
	}
	return RatingSentiment(*g.Rating, g.RatingScale)
}

// SignedRating returns the rating on the signed scale, 0 when unrated
func (g *Generation) SignedRating() int {
	if g.Rating == nil {
		return 0
	}
	return SignedRating(*g.Rating, g.RatingScale)
}

// AppliedDelta returns what the current rating contributed to a pair.
// Ratings stored without per-pair deltas count at their nominal delta.
func (g *Generation) AppliedDelta(key ParameterKey) float64 {
	if !g.IsRated() {
		return 0
	}
	if len(g.AppliedDeltas) == 0 {
		return RatingDelta(g.SignedRating())
	}
	for _, d := range g.AppliedDeltas {
		if d.Parameter == key.Parameter && d.Value == key.Value {
			return d.Delta
		}
	}
	return 0
}
