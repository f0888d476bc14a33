package http

import (
	"log/slog"

	httpH "github.com/alejandroruanova/preference-engine/internal/http/handlers"
	httpMW "github.com/alejandroruanova/preference-engine/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

// RouterConfig groups the handlers mounted by NewRouter; nil handlers are skipped
type RouterConfig struct {
	ProjectHandler    *httpH.ProjectHandler
	SessionHandler    *httpH.SessionHandler
	GenerationHandler *httpH.GenerationHandler
	AssetHandler      *httpH.AssetHandler
	HealthHandler     *httpH.HealthHandler

	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the gin engine
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Logger))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.AssetHandler != nil {
		r.GET("/assets/:session/:name", cfg.AssetHandler.GetAsset)
	}

	api := r.Group("/api")
	{
		if cfg.ProjectHandler != nil {
			api.GET("/projects", cfg.ProjectHandler.ListProjects)
			api.POST("/projects", cfg.ProjectHandler.CreateProject)
			api.GET("/projects/:id/sessions", cfg.ProjectHandler.ListSessions)
			api.POST("/projects/:id/sessions", cfg.ProjectHandler.CreateSession)
		}

		if cfg.SessionHandler != nil {
			api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
			api.GET("/sessions/:id/weights", cfg.SessionHandler.ListWeights)
			api.GET("/sessions/:id/weights/:parameter/:value", cfg.SessionHandler.GetWeight)
			api.PUT("/sessions/:id/weights/:parameter/:value", cfg.SessionHandler.SetWeight)
			api.POST("/sessions/:id/selections", cfg.SessionHandler.Select)
			api.POST("/sessions/:id/generations", cfg.SessionHandler.GenerateBatch)
			api.POST("/sessions/:id/generations/record", cfg.SessionHandler.RecordGeneration)
			api.GET("/sessions/:id/generations", cfg.SessionHandler.ListGenerations)
			api.GET("/sessions/:id/insight", cfg.SessionHandler.GetInsight)
		}

		if cfg.GenerationHandler != nil {
			api.POST("/generations/:id/rating", cfg.GenerationHandler.Rate)
		}
	}

	return r
}
