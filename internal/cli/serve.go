package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httpserver "github.com/alejandroruanova/preference-engine/internal/http"
	httpH "github.com/alejandroruanova/preference-engine/internal/http/handlers"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close(log)

		if serveMigrate {
			if err := a.db.AutoMigrate(); err != nil {
				return err
			}
		}

		httpLog := logger.NewServiceLogger("http")
		server := httpserver.NewServer(cfg.ServerAddr(), httpserver.RouterConfig{
			ProjectHandler:    httpH.NewProjectHandler(a.engine, httpLog),
			SessionHandler:    httpH.NewSessionHandler(a.engine, httpLog),
			GenerationHandler: httpH.NewGenerationHandler(a.engine, httpLog),
			AssetHandler:      httpH.NewAssetHandler(a.assets),
			HealthHandler: httpH.NewHealthHandler(map[string]httpH.HealthCheck{
				"database": a.db.Health,
				"redis":    a.cache.Health,
			}),
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         httpLog,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Run database migrations before serving")
}
