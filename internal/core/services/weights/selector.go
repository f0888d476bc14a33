package weights

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/google/uuid"
)

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// WeightedChoice picks one item with probability weight/total.
// Non-positive weights are never picked. When no weight is positive, or the
// walk runs off the end through rounding, the first item is returned.
func WeightedChoice[T any](items []T, weights []float64, rnd RandomSource) (T, int) {
	var zero T
	if len(items) == 0 {
		return zero, -1
	}

	total := 0.0
	for i := range items {
		if i < len(weights) && weights[i] > 0 {
			total += weights[i]
		}
	}
	if total <= 0 {
		return items[0], 0
	}

	r := rnd.Float64() * total
	for i := range items {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		r -= weights[i]
		if r < 0 {
			return items[i], i
		}
	}
	return items[0], 0
}

// Selection is one chosen value per category, in taxonomy order
type Selection struct {
	Choices []domain.ParameterUse `json:"choices"`
}

// Snapshot returns a copy suitable for persisting on a generation record
func (s Selection) Snapshot() []domain.ParameterUse {
	return append([]domain.ParameterUse(nil), s.Choices...)
}

// Map returns category -> choice
func (s Selection) Map() map[string]domain.ParameterUse {
	m := make(map[string]domain.ParameterUse, len(s.Choices))
	for _, c := range s.Choices {
		m[c.Parameter] = c
	}
	return m
}

// Value returns the value chosen for a category
func (s Selection) Value(parameter string) (string, bool) {
	for _, c := range s.Choices {
		if c.Parameter == parameter {
			return c.Value, true
		}
	}
	return "", false
}

// Selector draws parameter values proportionally to their weights
type Selector struct {
	store  *Store
	rnd    RandomSource
	logger *slog.Logger
}

// NewSelector creates a new selector. A nil rnd uses the process-wide source.
func NewSelector(store *Store, rnd RandomSource, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if rnd == nil {
		rnd = globalRand{}
	}

	return &Selector{
		store:  store,
		rnd:    rnd,
		logger: logger,
	}
}

// Select picks one value per category. Weights are read once and never written.
func (s *Selector) Select(ctx context.Context, sessionID uuid.UUID, taxonomy domain.Taxonomy) (*Selection, error) {
	weights, err := s.store.GetAll(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return SelectFrom(weights, taxonomy, s.rnd), nil
}

// SelectFrom picks one value per category from an in-memory weight view
func SelectFrom(weights Weights, taxonomy domain.Taxonomy, rnd RandomSource) *Selection {
	if rnd == nil {
		rnd = globalRand{}
	}

	selection := &Selection{Choices: make([]domain.ParameterUse, 0, taxonomy.Len())}
	for _, c := range taxonomy.Categories {
		if len(c.Values) == 0 {
			continue
		}
		w := make([]float64, len(c.Values))
		for i, v := range c.Values {
			w[i] = weights.Get(c.Name, v)
		}
		value, idx := WeightedChoice(c.Values, w, rnd)
		selection.Choices = append(selection.Choices, domain.ParameterUse{
			Parameter: c.Name,
			Value:     value,
			Weight:    w[idx],
		})
	}
	return selection
}
