package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HatiCode/gridcast/cmd/predictor/config"
	"github.com/HatiCode/gridcast/pkg/storage"
)

// referenceStore is a storage.Store the command can health-check and close.
type referenceStore interface {
	storage.Store
	Ping(ctx context.Context) error
	Close() error
}

// openStore creates the reference snapshot store selected by cfg.Storage.
func openStore(cfg *config.Config, log *slog.Logger) (referenceStore, error) {
	switch cfg.Storage {
	case "memory":
		log.Info("using in-memory reference storage")
		return localStore{storage.NewMemoryStore()}, nil

	case "file":
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("file storage: %w", err)
		}
		log.Info("using file reference storage", "dir", fs.Dir())
		return localStore{fs}, nil

	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		log.Info("using redis reference storage", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.RedisTTL)
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

// localStore adapts in-process stores, which are always reachable.
type localStore struct {
	storage.Store
}

func (localStore) Ping(context.Context) error { return nil }

func (localStore) Close() error { return nil }
