// Package storage opens the configured record store.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeovahfialho/perfwatch/internal/config"
	"github.com/jeovahfialho/perfwatch/internal/storage/memory"
	"github.com/jeovahfialho/perfwatch/internal/storage/postgres"
	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/pkg/logger"
)

// Open builds the adapter named by cfg.StoreDriver and wraps it in the
// resilient decorator. The returned closer releases the adapter's resources.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.RecordStore, func(), error) {
	log = logger.OrNop(log)
	resilience := store.ResilientConfig{
		MaxRetries: cfg.StoreMaxRetries,
		RetryBase:  cfg.StoreRetryBase,
		RateLimit:  cfg.StoreRateLimit,
		RateBurst:  cfg.StoreRateBurst,
	}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory record store, nothing will be persisted")
		return store.NewResilient(memory.New(), resilience, log), func() {}, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}

		records := postgres.NewRecordStore(db)
		if err := records.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}

		log.Info("connected to PostgreSQL",
			zap.Int32("max_conns", cfg.DatabaseMaxConns))
		return store.NewResilient(records, resilience, log), db.Close, nil

	default:
		return nil, nil, &config.FatalConfigError{
			Problems: []string{fmt.Sprintf("unknown store driver %q", cfg.StoreDriver)},
		}
	}
}
