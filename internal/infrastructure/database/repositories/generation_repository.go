package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenerationRepository stores generation records using GORM.
// It serves the engine, the weight store history and the adaptive synthesizer.
type GenerationRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGenerationRepository creates a new repository instance
func NewGenerationRepository(db *gorm.DB, logger *slog.Logger) *GenerationRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &GenerationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a generation record with its snapshot
func (r *GenerationRepository) Create(ctx context.Context, generation *domain.Generation) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(generation).Error; err != nil {
		r.logger.Error("failed to create generation",
			slog.String("session_id", generation.SessionID.String()),
			logger.Err(err))
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// GetByID returns a generation, or nil when it does not exist
func (r *GenerationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	var generation domain.Generation

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&generation).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &generation, nil
}

// ApplyRating records a rating and the weight changes it causes in one transaction.
// The generation row is locked first so concurrent ratings of the same
// generation apply one after the other. The snapshot column is never updated.
func (r *GenerationRepository) ApplyRating(ctx context.Context, id uuid.UUID, write domain.RatingWrite, plan domain.RatingPlanner) (*domain.Generation, []domain.WeightChange, error) {
	var (
		generation domain.Generation
		changes    []domain.WeightChange
		found      = true
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&generation).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock generation: %w", err)
		}

		keys, weightPlan, err := plan(&generation)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"rating":       write.Rating,
			"rating_scale": write.Scale,
			"comment":      write.Comment,
			"rated_at":     write.RatedAt,
		}

		var applied []domain.WeightDelta
		if len(keys) > 0 {
			changes, applied, err = mutateWeights(tx, generation.SessionID, keys, weightPlan)
			if err != nil {
				return err
			}
			updates["applied_deltas"] = datatypes.JSONSlice[domain.WeightDelta](applied)
		}

		if err := tx.Model(&generation).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record rating: %w", err)
		}

		rating := write.Rating
		ratedAt := write.RatedAt
		generation.Rating = &rating
		generation.RatingScale = write.Scale
		generation.Comment = write.Comment
		generation.RatedAt = &ratedAt
		if applied != nil {
			generation.AppliedDeltas = applied
		}
		return nil
	})

	if err != nil {
		r.logger.Error("rating rolled back",
			slog.String("generation_id", id.String()),
			slog.Int("rating", write.Rating),
			logger.Err(err))
		return nil, nil, err
	}
	if !found {
		return nil, nil, nil
	}

	return &generation, changes, nil
}

// ListBySession returns a session's generations ordered by created_at
func (r *GenerationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Generation, error) {
	var generations []domain.Generation

	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&generations).
		Error

	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return generations, nil
}

// ListRatedByProject returns rated generations of a project, skipping one session,
// ordered by rated_at then created_at
func (r *GenerationRepository) ListRatedByProject(ctx context.Context, projectID, excludeSessionID uuid.UUID) ([]domain.Generation, error) {
	var generations []domain.Generation

	err := r.db.WithContext(ctx).
		Where("project_id = ? AND session_id <> ? AND rating IS NOT NULL", projectID, excludeSessionID).
		Order("rated_at ASC, created_at ASC").
		Find(&generations).
		Error

	if err != nil {
		r.logger.Error("failed to load project rating history",
			slog.String("project_id", projectID.String()),
			logger.Err(err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return generations, nil
}

// ListRecentRated returns up to limit rated generations of a session, newest rating first
func (r *GenerationRepository) ListRecentRated(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.Generation, error) {
	var generations []domain.Generation

	err := r.db.WithContext(ctx).
		Where("session_id = ? AND rating IS NOT NULL", sessionID).
		Order("rated_at DESC, created_at DESC").
		Limit(limit).
		Find(&generations).
		Error

	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return generations, nil
}
