package factory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/config"
)

func TestNewStore_SQLiteInMemory(t *testing.T) {
	cfg := config.NewForTesting()
	st, err := NewStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = st.Close() }()
	if st.Dialect() != "sqlite" {
		t.Fatalf("dialect: %s", st.Dialect())
	}
	if err := st.HealthPing(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewStore_PostgresRequiresDSN(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	if _, err := NewStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing DSN")
	}
}

func TestNewStore_UnknownDriver(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DBDriver = "spanner"
	if _, err := NewStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
