package handlers

import (
	"log/slog"
	"net/http"

	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/alejandroruanova/preference-engine/internal/http/response"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ProjectHandler serves projects and the sessions inside them
type ProjectHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewProjectHandler creates the handler
func NewProjectHandler(e Engine, log *slog.Logger) *ProjectHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectHandler{engine: e, logger: log.With(slog.String("handler", "ProjectHandler"))}
}

type createProjectRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateProject handles POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	project, err := h.engine.CreateProject(c.Request.Context(), engine.CreateProjectInput{
		UserID:      userID(c, req.UserID),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}

	response.RespondCreated(c, project)
}

// ListProjects handles GET /api/projects for the user named by X-User-ID
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.engine.ListProjects(c.Request.Context(), userID(c, c.Query("user_id")))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projects": projects})
}

// ListSessions handles GET /api/projects/:id/sessions
func (h *ProjectHandler) ListSessions(c *gin.Context) {
	projectID, ok := pathID(c, "id", "invalid_project_id")
	if !ok {
		return
	}

	sessions, err := h.engine.ListSessions(c.Request.Context(), projectID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"project_id": projectID, "sessions": sessions})
}

type createSessionRequest struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Category   string `json:"category" binding:"required"`
	UserIntent string `json:"user_intent"`
}

// CreateSession handles POST /api/projects/:id/sessions
func (h *ProjectHandler) CreateSession(c *gin.Context) {
	projectID, ok := pathID(c, "id", "invalid_project_id")
	if !ok {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	result, err := h.engine.CreateSession(c.Request.Context(), engine.CreateSessionInput{
		ProjectID:  projectID,
		UserID:     userID(c, req.UserID),
		Name:       req.Name,
		Category:   req.Category,
		UserIntent: req.UserIntent,
	})
	if err != nil {
		h.logger.Warn("session creation failed",
			slog.String("project_id", projectID.String()),
			logger.Err(err))
		response.RespondAppError(c, err)
		return
	}

	response.RespondCreated(c, result)
}
