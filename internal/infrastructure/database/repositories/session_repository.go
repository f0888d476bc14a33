package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const weightBatchSize = 500

// SessionRepository implements engine.SessionRepository using GORM
type SessionRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *gorm.DB, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateInitialized inserts the session and all of its weight rows in one transaction
func (r *SessionRepository) CreateInitialized(ctx context.Context, session *domain.Session, entries []domain.WeightEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(session).Error; err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			entries[i].SessionID = session.ID
		}
		if err := tx.CreateInBatches(&entries, weightBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert weights: %w", err)
		}
		return nil
	})

	if err != nil {
		r.logger.Error("failed to create session",
			slog.String("session_id", session.ID.String()),
			slog.String("project_id", session.ProjectID.String()),
			slog.Int("weight_count", len(entries)),
			logger.Err(err))
		return err
	}

	r.logger.Info("session persisted",
		slog.String("session_id", session.ID.String()),
		slog.Int("weight_count", len(entries)))

	return nil
}

// GetByID returns a session, or nil when it does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var session domain.Session

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &session, nil
}

// ListByProject returns the sessions of a project in creation order
func (r *SessionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Session, error) {
	var sessions []domain.Session

	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&sessions).
		Error

	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return sessions, nil
}
