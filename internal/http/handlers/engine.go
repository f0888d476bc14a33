package handlers

import (
	"context"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/google/uuid"
)

// Engine is the part of engine.Service the HTTP layer calls
type Engine interface {
	CreateProject(ctx context.Context, input engine.CreateProjectInput) (*domain.Project, error)
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	ListSessions(ctx context.Context, projectID uuid.UUID) ([]domain.Session, error)
	CreateSession(ctx context.Context, input engine.CreateSessionInput) (*engine.SessionResult, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	SelectAndRecordGeneration(ctx context.Context, sessionID uuid.UUID) (*engine.SelectionResult, error)
	RecordGeneration(ctx context.Context, input engine.RecordGenerationInput) (*domain.Generation, error)
	GenerateBatch(ctx context.Context, input engine.GenerateBatchInput) (*engine.BatchResult, error)
	Rate(ctx context.Context, generationID uuid.UUID, rating int, comment string) (*engine.RateResult, error)
	GetAdaptiveInsight(ctx context.Context, sessionID uuid.UUID) (*adaptive.Insight, error)
	ListWeights(ctx context.Context, sessionID uuid.UUID) ([]domain.WeightEntry, error)
	GetWeight(ctx context.Context, sessionID uuid.UUID, parameter, value string) (float64, error)
	SetWeight(ctx context.Context, sessionID uuid.UUID, parameter, value string, weight float64) (float64, error)
	ListGenerations(ctx context.Context, sessionID uuid.UUID) ([]domain.Generation, error)
}

var _ Engine = (*engine.Service)(nil)
