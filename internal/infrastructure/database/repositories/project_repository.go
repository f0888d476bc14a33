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
)

// ProjectRepository implements engine.ProjectRepository using GORM
type ProjectRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewProjectRepository creates a new repository instance
func NewProjectRepository(db *gorm.DB, logger *slog.Logger) *ProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a project
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		r.logger.Error("failed to create project",
			slog.String("user_id", project.UserID),
			logger.Err(err))
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetByID returns a project, or nil when it does not exist
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&project).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return &project, nil
}

// ListByUser returns a user's projects, newest first
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	var projects []domain.Project

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).
		Error

	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	return projects, nil
}
