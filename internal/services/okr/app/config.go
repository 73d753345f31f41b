// Package app composes the OKR engine: it opens the configured store and
// exposes every use case through one instrumented Service.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/okrengine/internal/platform/config"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/memory"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/postgres"
	"github.com/louisbranch/okrengine/internal/services/okr/storage/sqlite"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds engine settings.
type Config struct {
	DBDriver             string `env:"OKR_DB_DRIVER" envDefault:"sqlite"`
	DBPath               string `env:"OKR_DB_PATH" envDefault:"data/okr.db"`
	PostgresDSN          string `env:"OKR_POSTGRES_DSN"`
	RecomputeConcurrency int    `env:"OKR_RECOMPUTE_CONCURRENCY" envDefault:"4"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Backend is an opened store.
type Backend interface {
	storage.TxStore
	io.Closer
}

type memoryBackend struct {
	*memory.Store
}

func (memoryBackend) Close() error { return nil }

// Open opens and migrates the store cfg names.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			return nil, fmt.Errorf("OKR_DB_PATH is required for the sqlite driver")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("OKR_POSTGRES_DSN is required for the postgres driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case DriverMemory:
		return memoryBackend{memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
	}
}
