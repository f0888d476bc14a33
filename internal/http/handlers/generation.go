package handlers

import (
	"log/slog"
	"net/http"

	"github.com/alejandroruanova/preference-engine/internal/http/response"
	"github.com/gin-gonic/gin"
)

// GenerationHandler serves rating of generations
type GenerationHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewGenerationHandler creates the handler
func NewGenerationHandler(e Engine, log *slog.Logger) *GenerationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationHandler{engine: e, logger: log.With(slog.String("handler", "GenerationHandler"))}
}

type rateRequest struct {
	Rating  *int   `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// Rate handles POST /api/generations/:id/rating
func (h *GenerationHandler) Rate(c *gin.Context) {
	generationID, ok := pathID(c, "id", "invalid_generation_id")
	if !ok {
		return
	}

	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.engine.Rate(c.Request.Context(), generationID, *req.Rating, req.Comment)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, result)
}
