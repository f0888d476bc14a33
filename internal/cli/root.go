// Package cli implements the preference-engine commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/preference-engine/internal/pkg/config"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var verbose bool

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "preference-engine",
	Short:        "Preference-learning image generation service",
	Long:         "Learns which prompt parameters a user likes from ratings and steers image generation toward them.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print the loaded configuration (secrets hidden)")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(workerCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(cleanupCmd)
}

// loadConfig loads configuration and initializes the process logger
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.LogConfig()
	}

	log := logger.Initialize(cfg.Environment)
	return cfg, log, nil
}
