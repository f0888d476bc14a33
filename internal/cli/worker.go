package cli

import (
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/queue"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker that refreshes adaptive insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.close(log)

		workerLog := logger.NewServiceLogger("worker")
		server, err := queue.NewAsynqServer(&cfg.Queue, workerLog)
		if err != nil {
			return err
		}
		server.Handle(queue.TaskTypeAdaptiveRefresh, queue.NewAdaptiveRefreshHandler(a.insights, workerLog))

		// Run blocks until SIGINT or SIGTERM
		return server.Start()
	},
}
