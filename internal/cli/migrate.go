package cli

import (
	"github.com/alejandroruanova/preference-engine/internal/infrastructure/database"
	"github.com/alejandroruanova/preference-engine/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.NewPostgresDB(&cfg.Database, logger.NewServiceLogger("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		return db.AutoMigrate()
	},
}
