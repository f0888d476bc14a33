package adaptive

import (
	"context"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/google/uuid"
)

// Service serves insights through an optional cache
type Service struct {
	config      Config
	synthesizer *Synthesizer
	cache       InsightCache
	logger      *slog.Logger
}

// NewService creates a new insight service. cache may be nil.
func NewService(config Config, synthesizer *Synthesizer, cache InsightCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:      config,
		synthesizer: synthesizer,
		cache:       cache,
		logger:      logger,
	}
}

// Get returns the cached insight of a session, computing it on a miss.
// Cache failures are logged and never returned.
func (s *Service) Get(ctx context.Context, sessionID uuid.UUID) (*Insight, error) {
	if s.cache != nil {
		insight, ok, err := s.cache.GetInsight(ctx, sessionID)
		if err != nil {
			s.logger.Warn("insight cache read failed",
				slog.String("session_id", sessionID.String()),
				logger.Err(err))
		} else if ok {
			return insight, nil
		}
	}

	return s.Refresh(ctx, sessionID)
}

// Refresh recomputes the insight of a session and stores it in the cache.
// An insight overtaken by a rating recorded while it was computed is dropped
// from the cache again, so the next read recomputes it.
func (s *Service) Refresh(ctx context.Context, sessionID uuid.UUID) (*Insight, error) {
	insight, err := s.synthesizer.Analyze(ctx, sessionID, s.config.Window)
	if err != nil {
		return nil, err
	}

	if s.cache == nil {
		return insight, nil
	}
	if err := s.cache.SetInsight(ctx, sessionID, insight, s.config.CacheTTL); err != nil {
		s.logger.Warn("insight cache write failed",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return insight, nil
	}

	if s.overtaken(ctx, sessionID, insight) {
		s.logger.Debug("insight overtaken by a newer rating",
			slog.String("session_id", sessionID.String()))
		s.Invalidate(ctx, sessionID)
	}

	return insight, nil
}

// overtaken reports whether the session was rated after the insight's newest
// rating. A failed lookup counts as overtaken.
func (s *Service) overtaken(ctx context.Context, sessionID uuid.UUID, insight *Insight) bool {
	latest, err := s.synthesizer.LatestRatedAt(ctx, sessionID)
	if err != nil {
		s.logger.Warn("insight freshness check failed",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
		return true
	}
	if latest == nil {
		return false
	}
	return insight.LatestRatedAt == nil || latest.After(*insight.LatestRatedAt)
}

// Invalidate drops the cached insight of a session
func (s *Service) Invalidate(ctx context.Context, sessionID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateInsight(ctx, sessionID); err != nil {
		s.logger.Warn("insight cache invalidation failed",
			slog.String("session_id", sessionID.String()),
			logger.Err(err))
	}
}
