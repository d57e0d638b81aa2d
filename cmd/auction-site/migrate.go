package main

import (
	"context"
	"fmt"
	"time"

	"auction-site/internal/infrastructure/mysql"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}
			defer logger.Sync(log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := utils.InitializeMysql(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := mysql.Migrate(db)
			if err != nil {
				return err
			}

			log.Info("Database schema up to date", "version", version)
			return nil
		},
	}
}
