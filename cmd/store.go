package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/missionops/internal/config"
	"github.com/immxrtalbeast/missionops/internal/repository"
)

// openStore connects the configured backend. When migrate is set the schema
// and indexes are created before the store is returned.
func openStore(ctx context.Context, cfg config.StorageConfig, migrate bool, log *slog.Logger) (*repository.Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryStore(), nil

	case config.StoragePostgres:
		db, err := repository.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := repository.NewPostgresStore(db)
		if migrate {
			if err := repository.MigratePostgres(db); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		return store, nil

	case config.StorageMongo:
		db, err := repository.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(db)
		if migrate {
			if err := repository.MigrateMongo(ctx, db); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("migrate mongo: %w", err)
			}
		}
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func devSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
