package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/core/services/adaptive"
	"github.com/alejandroruanova/preference-engine/internal/core/services/engine"
	"github.com/alejandroruanova/preference-engine/internal/core/services/prompting"
	"github.com/alejandroruanova/preference-engine/internal/core/services/taxonomy"
	"github.com/alejandroruanova/preference-engine/internal/core/services/weights"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/cache"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/database"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/llm"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/queue"
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/storage"
	"github.com/alejandroruanova/preference-engine/internal/pkg/config"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
)

// app holds every long-lived dependency of a process
type app struct {
	db       *database.PostgresDB
	cache    *cache.RedisCache
	tasks    *queue.AsynqClient
	assets   *storage.LocalStorage
	insights *adaptive.Service
	engine   *engine.Service
	closers  []func() error
}

// newApp connects infrastructure and assembles the services
func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}

	db, err := database.NewPostgresDB(&cfg.Database, logger.NewServiceLogger("database"))
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	redisCache, err := cache.NewRedisCache(&cfg.Cache, logger.NewServiceLogger("cache"))
	if err != nil {
		a.close(log)
		return nil, err
	}
	a.cache = redisCache
	a.closers = append(a.closers, redisCache.Close)

	tasks, err := queue.NewAsynqClient(&cfg.Queue, logger.NewServiceLogger("queue"))
	if err != nil {
		a.close(log)
		return nil, err
	}
	a.tasks = tasks
	a.closers = append(a.closers, tasks.Close)

	assets, err := storage.NewLocalStorage(&storage.LocalStorageConfig{
		BasePath:      cfg.Storage.BasePath,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	}, logger.NewServiceLogger("storage"))
	if err != nil {
		a.close(log)
		return nil, err
	}
	a.assets = assets

	openai, err := llm.NewClient(&cfg.LLM, logger.NewServiceLogger("openai"))
	if err != nil {
		a.close(log)
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	projectRepo := repositories.NewProjectRepository(db.DB, log)
	sessionRepo := repositories.NewSessionRepository(db.DB, log)
	weightRepo := repositories.NewWeightRepository(db.DB, log)
	generationRepo := repositories.NewGenerationRepository(db.DB, log)

	store := weights.NewStore(weightRepo, generationRepo, logger.NewServiceLogger("weights"))

	adaptiveCfg := adaptive.DefaultConfig()
	adaptiveCfg.Window = cfg.Engine.AdaptiveWindow
	if cfg.Engine.InsightCacheTTL > 0 {
		adaptiveCfg.CacheTTL = cfg.Engine.InsightCacheTTL
	}
	adaptiveLog := logger.NewServiceLogger("adaptive")
	synth := adaptive.NewSynthesizer(adaptiveCfg, generationRepo, openai, adaptiveLog)
	a.insights = adaptive.NewService(adaptiveCfg, synth, redisCache, adaptiveLog)

	engineCfg := engine.DefaultConfig()
	engineCfg.BatchMaxItems = cfg.Engine.BatchMaxItems
	engineCfg.BatchConcurrency = cfg.Engine.BatchConcurrency
	engineCfg.ImageTimeout = time.Duration(cfg.Engine.ImageTimeoutSeconds) * time.Second

	a.engine = engine.NewService(engineCfg, engine.Dependencies{
		Projects:    projectRepo,
		Sessions:    sessionRepo,
		Generations: generationRepo,
		Taxonomies:  taxonomy.NewBuilder(taxonomy.DefaultConfig(), openai, logger.NewServiceLogger("taxonomy")),
		Store:       store,
		Selector:    weights.NewSelector(store, nil, logger.NewServiceLogger("selector")),
		Updater:     weights.NewUpdater(generationRepo, logger.NewServiceLogger("updater")),
		Insights:    a.insights,
		Composer:    prompting.NewComposer(openai, logger.NewServiceLogger("composer")),
		Images:      openai,
		Assets:      assets,
		Tasks:       tasks,
	}, logger.NewServiceLogger("engine"))

	return a, nil
}

// close releases resources in reverse order of acquisition
func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("failed to close resource", logger.Err(err))
		}
	}
	a.closers = nil
}
