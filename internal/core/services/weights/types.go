package weights

import (
	"context"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/google/uuid"
)

// WeightRepository defines the interface for weight storage
type WeightRepository interface {
	// ListBySession returns every weight row of a session
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error)

	// Get returns one weight row, or nil when the row does not exist
	Get(ctx context.Context, sessionID uuid.UUID, parameter, value string) (*domain.WeightEntry, error)

	// Upsert writes an absolute weight, creating the row if needed
	Upsert(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) error
}

// RatingRepository records ratings together with their weight changes
type RatingRepository interface {
	// ApplyRating locks the generation, asks plan which pairs to change,
	// applies the plan to those weight rows and records the rating, all in
	// one transaction. Missing weight rows start from domain.DefaultWeight.
	// It returns a nil generation when the id does not exist.
	ApplyRating(ctx context.Context, id uuid.UUID, write domain.RatingWrite, plan domain.RatingPlanner) (*domain.Generation, []domain.WeightChange, error)
}

// RatingHistory gives access to the rated generations of a project
type RatingHistory interface {
	// ListRatedByProject returns rated generations of a project ordered by
	// rated_at then created_at, skipping the given session
	ListRatedByProject(ctx context.Context, projectID, excludeSessionID uuid.UUID) ([]domain.Generation, error)
}

// RandomSource yields uniform floats in [0, 1)
type RandomSource interface {
	Float64() float64
}

// Weights is a read view of a session's weights keyed by (parameter, value)
type Weights map[domain.ParameterKey]float64

// Get returns the weight of a pair, defaulting to domain.DefaultWeight
func (w Weights) Get(parameter, value string) float64 {
	if weight, ok := w[domain.ParameterKey{Parameter: parameter, Value: value}]; ok {
		return weight
	}
	return domain.DefaultWeight
}

// RatingOutcome describes what a rating did to the weights
type RatingOutcome struct {
	Generation *domain.Generation    `json:"generation"`
	Changes    []domain.WeightChange `json:"changes"`
	NoSnapshot bool                  `json:"no_snapshot,omitempty"`
}
