package weights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	apperrors "github.com/alejandroruanova/preference-engine/internal/pkg/errors"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
)

// Updater turns ratings into weight changes
type Updater struct {
	ratings RatingRepository
	logger  *slog.Logger
}

// NewUpdater creates a new rating-driven weight updater
func NewUpdater(ratings RatingRepository, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}

	return &Updater{
		ratings: ratings,
		logger:  logger,
	}
}

// ApplyRating records a rating and updates the weights of every pair in the
// generation's snapshot in one step.
//
// A generation rated before has what it previously contributed to each pair
// taken back before the new delta is applied. Contributions are stored per
// pair, so a clamped rating is reversed by exactly the amount it moved the
// weight. Rating again with the same value changes no weight. A generation
// without a snapshot is still rated and yields a NoSnapshot outcome.
func (u *Updater) ApplyRating(ctx context.Context, generationID uuid.UUID, write domain.RatingWrite) (*RatingOutcome, error) {
	if !domain.IsValidRating(write.Rating) {
		return nil, apperrors.InvalidRating(write.Rating)
	}
	if write.Scale == "" {
		write.Scale = domain.ScaleSigned
	}

	var (
		noSnapshot bool
		previous   int
	)
	planner := func(gen *domain.Generation) ([]domain.ParameterKey, domain.WeightPlan, error) {
		previous = gen.SignedRating()
		if !gen.HasSnapshot() {
			noSnapshot = true
			return nil, nil, nil
		}
		if gen.IsRated() && previous == domain.SignedRating(write.Rating, write.Scale) {
			return nil, nil, nil
		}

		delta := domain.RatingDelta(domain.SignedRating(write.Rating, write.Scale))
		plan := func(key domain.ParameterKey, old float64) (float64, float64) {
			return domain.Rerate(old, gen.AppliedDelta(key), delta)
		}
		return snapshotKeys(gen.ParametersUsed), plan, nil
	}

	gen, changes, err := u.ratings.ApplyRating(ctx, generationID, write, planner)
	if err != nil {
		u.logger.Error("failed to apply rating",
			slog.String("generation_id", generationID.String()),
			slog.Int("rating", write.Rating),
			logger.Err(err))
		return nil, fmt.Errorf("failed to apply rating: %w", err)
	}
	if gen == nil {
		return nil, apperrors.RecordNotFound("generation")
	}
	if changes == nil {
		changes = []domain.WeightChange{}
	}

	if noSnapshot {
		u.logger.Warn("rated generation has no parameter snapshot",
			slog.String("generation_id", generationID.String()))
	}

	u.logger.Info("applied rating to weights",
		slog.String("generation_id", generationID.String()),
		slog.String("session_id", gen.SessionID.String()),
		slog.Int("rating", write.Rating),
		slog.Int("previous_rating", previous),
		slog.Int("changes", len(changes)))

	return &RatingOutcome{
		Generation: gen,
		Changes:    changes,
		NoSnapshot: noSnapshot,
	}, nil
}

// snapshotKeys returns the distinct pairs of a snapshot in order
func snapshotKeys(snapshot []domain.ParameterUse) []domain.ParameterKey {
	seen := make(map[domain.ParameterKey]bool, len(snapshot))
	keys := make([]domain.ParameterKey, 0, len(snapshot))
	for _, use := range snapshot {
		key := domain.ParameterKey{Parameter: use.Parameter, Value: use.Value}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}
