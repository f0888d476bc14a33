package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types
const (
	TaskTypeAdaptiveRefresh = "adaptive:refresh"
)

const refreshDebounce = 30 * time.Second

// AdaptiveRefreshPayload is the body of an adaptive:refresh task
type AdaptiveRefreshPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// NewAdaptiveRefreshTask builds the task for one session
func NewAdaptiveRefreshTask(sessionID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(AdaptiveRefreshPayload{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh payload: %w", err)
	}
	return asynq.NewTask(TaskTypeAdaptiveRefresh, payload), nil
}

// ParseAdaptiveRefreshPayload decodes and checks a task body
func ParseAdaptiveRefreshPayload(data []byte) (AdaptiveRefreshPayload, error) {
	var p AdaptiveRefreshPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("invalid refresh payload: %w", err)
	}
	if p.SessionID == uuid.Nil {
		return p, fmt.Errorf("invalid refresh payload: missing session_id")
	}
	return p, nil
}

// InsightRefresher recomputes and caches a session's insight
type InsightRefresher interface {
	Refresh(ctx context.Context, sessionID uuid.UUID) (*adaptive.Insight, error)
}

// AdaptiveRefreshHandler processes adaptive:refresh tasks
type AdaptiveRefreshHandler struct {
	refresher InsightRefresher
	logger    *slog.Logger
}

// NewAdaptiveRefreshHandler creates the handler
func NewAdaptiveRefreshHandler(refresher InsightRefresher, logger *slog.Logger) *AdaptiveRefreshHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdaptiveRefreshHandler{refresher: refresher, logger: logger}
}

// ProcessTask implements asynq.Handler
func (h *AdaptiveRefreshHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAdaptiveRefreshPayload(task.Payload())
	if err != nil {
		// retrying cannot fix a malformed body
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	start := time.Now()
	insight, err := h.refresher.Refresh(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("adaptive refresh for session %s: %w", payload.SessionID, err)
	}

	h.logger.Info("adaptive insight refreshed",
		slog.String("session_id", payload.SessionID.String()),
		slog.Int("items_analyzed", insight.ItemsAnalyzed),
		slog.Bool("statistical_only", insight.StatisticalOnly),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return nil
}
