package main

import (
	"os"

	"github.com/spf13/cobra"

	"LIBRA-backend/internal/platform/db"
	"LIBRA-backend/internal/platform/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "マイグレーションを最新まで適用する",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

			conn, err := db.Connect(cfg.DB)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(conn, cfg.DB.Driver); err != nil {
				return err
			}
			logger.Info("migrations applied", "driver", cfg.DB.Driver)
			return nil
		},
	}
}
