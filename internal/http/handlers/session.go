package handlers

import (
	"log/slog"
	"net/http"

	"github.com/alejandroruanova/preference-engine/internal/core/domain"
	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/alejandroruanova/preference-engine/internal/http/response"
	"github.com/gin-gonic/gin"
)

// SessionHandler serves session-scoped reads, selections and generations
type SessionHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewSessionHandler creates the handler
func NewSessionHandler(e Engine, log *slog.Logger) *SessionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandler{engine: e, logger: log.With(slog.String("handler", "SessionHandler"))}
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	session, err := h.engine.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, session)
}

// ListWeights handles GET /api/sessions/:id/weights
func (h *SessionHandler) ListWeights(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	entries, err := h.engine.ListWeights(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session_id": sessionID, "weights": entries})
}

// GetWeight handles GET /api/sessions/:id/weights/:parameter/:value
func (h *SessionHandler) GetWeight(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	parameter, value := c.Param("parameter"), c.Param("value")

	w, err := h.engine.GetWeight(c.Request.Context(), sessionID, parameter, value)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"parameter": parameter, "value": value, "weight": w})
}

type setWeightRequest struct {
	Weight *float64 `json:"weight" binding:"required"`
}

// SetWeight handles PUT /api/sessions/:id/weights/:parameter/:value
func (h *SessionHandler) SetWeight(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	var req setWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	parameter, value := c.Param("parameter"), c.Param("value")

	stored, err := h.engine.SetWeight(c.Request.Context(), sessionID, parameter, value, *req.Weight)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"parameter": parameter, "value": value, "weight": stored})
}

// Select handles POST /api/sessions/:id/selections
func (h *SessionHandler) Select(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	result, err := h.engine.SelectAndRecordGeneration(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type generateBatchRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt" binding:"required"`
	Count  int    `json:"count"`
}

// GenerateBatch handles POST /api/sessions/:id/generations.
// Partial success is a 200; a batch with no successful item is a 502.
func (h *SessionHandler) GenerateBatch(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	var req generateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	result, err := h.engine.GenerateBatch(c.Request.Context(), engine.GenerateBatchInput{
		SessionID: sessionID,
		UserID:    userID(c, req.UserID),
		Prompt:    req.Prompt,
		Count:     req.Count,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}

	if result.Successful == 0 {
		h.logger.Warn("every batch item failed",
			slog.String("session_id", sessionID.String()),
			slog.Int("total", result.Total))
		c.JSON(http.StatusBadGateway, result)
		return
	}
	response.RespondOK(c, result)
}

type recordGenerationRequest struct {
	UserID         string                `json:"user_id"`
	OriginalPrompt string                `json:"original_prompt" binding:"required"`
	FinalPrompt    string                `json:"final_prompt"`
	Model          string                `json:"model"`
	AssetURL       string                `json:"asset_url"`
	Snapshot       []domain.ParameterUse `json:"parameters_used"`
}

// RecordGeneration handles POST /api/sessions/:id/generations/record
func (h *SessionHandler) RecordGeneration(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	var req recordGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	gen, err := h.engine.RecordGeneration(c.Request.Context(), engine.RecordGenerationInput{
		SessionID:      sessionID,
		UserID:         userID(c, req.UserID),
		OriginalPrompt: req.OriginalPrompt,
		FinalPrompt:    req.FinalPrompt,
		Model:          req.Model,
		AssetURL:       req.AssetURL,
		Snapshot:       req.Snapshot,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondCreated(c, gen)
}

// ListGenerations handles GET /api/sessions/:id/generations
func (h *SessionHandler) ListGenerations(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	gens, err := h.engine.ListGenerations(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session_id": sessionID, "generations": gens})
}

// GetInsight handles GET /api/sessions/:id/insight
func (h *SessionHandler) GetInsight(c *gin.Context) {
	sessionID, ok := pathID(c, "id", "invalid_session_id")
	if !ok {
		return
	}

	insight, err := h.engine.GetAdaptiveInsight(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, insight)
}
