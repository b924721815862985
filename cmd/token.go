package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/config"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/clock"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint an access token for an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := setupLogger(cfg.Env)

		if cfg.Storage.Driver == config.StorageMemory {
			return errors.New("token needs a persistent store, memory storage has no users outside the server process")
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		store, err := openStore(ctx, cfg.Storage, false, log)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		user, err := store.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		auth := service.NewAuthService(store.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Leeway, clock.New(), log)
		token, err := auth.IssueToken(user)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
