package main

import (
	"errors"
	"fmt"

	pg "pet-clinical-history/internal/adapters/storage/postgres"
	"pet-clinical-history/internal/platform/config"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones pendientes de Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		if cfg.DatabaseDSN == "" {
			return errors.New("DB_DSN is required")
		}

		db, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := pg.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to migrate")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
		}
		return nil
	},
}
