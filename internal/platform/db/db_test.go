package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpen_RequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank dsn")
	}
}

func TestOpen_RejectsMalformedDSN(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOptions(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://vibe@localhost:5432/vibe")
	if err != nil {
		t.Fatal(err)
	}
	cfg.MinConns = 3
	WithMaxConns(2)(cfg)
	WithMaxConns(0)(cfg)
	WithConnectTimeout(2 * time.Second)(cfg)

	if cfg.MaxConns != 2 || cfg.MinConns != 2 {
		t.Fatalf("unexpected pool bounds max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.ConnConfig.ConnectTimeout != 2*time.Second {
		t.Fatalf("unexpected connect timeout %s", cfg.ConnConfig.ConnectTimeout)
	}
}
