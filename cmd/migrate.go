package cmd

import (
	"github.com/ArthurPouzCS/traktoon-sub000/internal/db"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the connection tables in the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// NewService applies the schema on open.
		dbService, err := db.NewService(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = dbService.Close() }()

		if err := dbService.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Schema is up to date", "driver", string(dbService.Driver()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
