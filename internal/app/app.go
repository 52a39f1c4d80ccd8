// Package app holds the wiring shared by the cobra commands: logger, store
// backend and optional Redis.
package app

import (
	"fmt"

	"github.com/jmehdipour/leadsync/internal/config"
	"github.com/jmehdipour/leadsync/internal/db"
	"github.com/jmehdipour/leadsync/internal/logger"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/jmehdipour/leadsync/internal/upstream"
	"github.com/redis/go-redis/v9"
)

// Load reads the config and initializes the global logger from it.
func Load(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.ErrorLog); err != nil {
		return config.Config{}, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// OpenStore opens the document store selected by storage.backend.
func OpenStore(cfg config.Config) (repository.KV, error) {
	switch cfg.Storage.Backend {
	case "", "file":
		kv, err := repository.NewFileKV(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "badger":
		kv, err := repository.OpenBadger(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "mysql":
		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return repository.NewMySQLKV(sqlDB), nil
	default:
		return nil, fmt.Errorf("unknown storage.backend %q (want file, badger or mysql)", cfg.Storage.Backend)
	}
}

// OpenRedis returns nil when no address is configured.
func OpenRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	return db.OpenRedis(cfg.Redis)
}

// Breaker returns a fresh circuit breaker for one upstream.
func Breaker(cfg config.Config) *upstream.Breaker {
	return upstream.NewBreaker(cfg.Breaker.FailThreshold, cfg.Breaker.OpenFor)
}
