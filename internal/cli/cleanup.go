package cli

import (
	"fmt"
	"time"

	"github.com/alejandroruanova/preference-engine/internal/infrastructure/storage"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-assets",
	Short: "Delete generated image folders not modified within --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cleanupOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		assets, err := storage.NewLocalStorage(&storage.LocalStorageConfig{
			BasePath:      cfg.Storage.BasePath,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		}, logger.NewServiceLogger("storage"))
		if err != nil {
			return err
		}

		removed, err := assets.CleanupOldFiles(cmd.Context(), cleanupOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d session asset folders\n", removed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Age threshold")
}
