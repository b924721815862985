package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/immxrtalbeast/missionops/internal/config"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes for the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := setupLogger(cfg.Env)

		if cfg.Storage.Driver == config.StorageMemory {
			log.Info("memory storage needs no migration")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		store, err := openStore(ctx, cfg.Storage, true, log)
		if err != nil {
			log.Error("migration failed", sl.Err(err))
			return err
		}
		defer store.Close(context.Background())

		log.Info("migration complete", slog.String("driver", cfg.Storage.Driver))
		return nil
	},
}
