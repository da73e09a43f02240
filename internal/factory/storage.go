package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/config"
	"github.com/thomasnguyen/corgi-quest/internal/store/postgres"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlite"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlstore"
)

// NewStore opens the configured database, applies migrations and returns the store.
// Postgres requires a DSN; SQLite uses cfg.SQLitePath.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sqlstore.Store, error) {
	timeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	// Migrations on a cold database can take longer than a ping.
	bootCtx, cancel := context.WithTimeout(ctx, 6*timeout)
	defer cancel()

	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("CORGI_QUEST_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		st, err := postgres.New(bootCtx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("store ready")
		return st, nil
	case "sqlite":
		st, err := sqlite.New(bootCtx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		log.Info().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store ready")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
