package main

import (
	"fmt"

	"github.com/PaulBabatuyi/WeddingHub/internal/config"
	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/PaulBabatuyi/WeddingHub/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the record store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := observability.InitLogger(cfg.Log.Dev)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			store, err := database.Open(cmd.Context(), database.Config{
				Driver:        cfg.Database.Driver,
				URL:           cfg.Database.URL,
				EtcdEndpoints: cfg.Database.EtcdEndpoints,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}
