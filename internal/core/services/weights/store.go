package weights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/google/uuid"
)

// Store owns the weight rows of every session
type Store struct {
	repo    WeightRepository
	history RatingHistory
	logger  *slog.Logger
}

// NewStore creates a new weight store
func NewStore(repo WeightRepository, history RatingHistory, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		repo:    repo,
		history: history,
		logger:  logger,
	}
}

// Seed plans the initial weight rows for a new session.
//
// Every (parameter, value) pair of the taxonomy starts at domain.DefaultWeight.
// When the project already holds rated generations from other sessions, their
// final ratings are replayed in rated_at order on top of that base, one clamped
// step per generation. Only pairs of the new taxonomy are seeded. Rows are
// stamped with sessionID, whose own history is excluded from the replay.
func (s *Store) Seed(ctx context.Context, projectID uuid.UUID, taxonomy domain.Taxonomy, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	weights := make(Weights, taxonomy.PairCount())
	for _, c := range taxonomy.Categories {
		for _, v := range c.Values {
			weights[domain.ParameterKey{Parameter: c.Name, Value: v}] = domain.DefaultWeight
		}
	}

	replayed := 0
	if s.history != nil {
		rated, err := s.history.ListRatedByProject(ctx, projectID, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project rating history: %w", err)
		}

		for _, gen := range rated {
			signed := gen.SignedRating()
			if signed == 0 || !gen.HasSnapshot() {
				continue
			}
			delta := domain.RatingDelta(signed)
			for _, use := range gen.ParametersUsed {
				key := domain.ParameterKey{Parameter: use.Parameter, Value: use.Value}
				current, ok := weights[key]
				if !ok {
					continue
				}
				weights[key] = domain.ClampWeight(current + delta)
			}
			replayed++
		}
	}

	entries := make([]domain.WeightEntry, 0, len(weights))
	for _, c := range taxonomy.Categories {
		for _, v := range c.Values {
			entries = append(entries, domain.WeightEntry{
				SessionID:      sessionID,
				ParameterName:  c.Name,
				ParameterValue: v,
				Weight:         weights[domain.ParameterKey{Parameter: c.Name, Value: v}],
			})
		}
	}

	s.logger.Info("planned session weights",
		slog.String("project_id", projectID.String()),
		slog.String("session_id", sessionID.String()),
		slog.Int("entries", len(entries)),
		slog.Int("replayed_generations", replayed))

	return entries, nil
}

// GetAll returns the session's weights as a read view
func (s *Store) GetAll(ctx context.Context, sessionID uuid.UUID) (Weights, error) {
	entries, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}

	weights := make(Weights, len(entries))
	for _, e := range entries {
		weights[e.Key()] = e.Weight
	}
	return weights, nil
}

// List returns the raw weight rows of a session
func (s *Store) List(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error) {
	entries, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	return entries, nil
}

// GetOne returns a single weight, defaulting to domain.DefaultWeight when no row exists
func (s *Store) GetOne(ctx context.Context, sessionID uuid.UUID, parameter, value string) (float64, error) {
	entry, err := s.repo.Get(ctx, sessionID, parameter, value)
	if err != nil {
		return 0, fmt.Errorf("failed to load weight: %w", err)
	}
	if entry == nil {
		return domain.DefaultWeight, nil
	}
	return entry.Weight, nil
}

// SetOne clamps weight once and writes it
func (s *Store) SetOne(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) (float64, error) {
	clamped := domain.ClampWeight(weight)
	if err := s.repo.Upsert(ctx, sessionID, parameter, value, clamped); err != nil {
		return 0, fmt.Errorf("failed to write weight: %w", err)
	}
	return clamped, nil
}
