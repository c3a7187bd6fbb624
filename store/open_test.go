package store

import (
	"context"
	"testing"

	"github.com/aluiziolira/autotrader-watch/config"
)

func TestOpen_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreBackend = "memory"

	b, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close(context.Background())

	if _, ok := b.(*Memory); !ok {
		t.Errorf("Open() = %T, want *Memory", b)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StoreBackend = "sqlite"

	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("Open() with unknown backend should fail")
	}
}

func TestNewRedisLedger_BadURL(t *testing.T) {
	if _, err := NewRedisLedger(context.Background(), "http://not-redis", ""); err == nil {
		t.Error("NewRedisLedger() with non-redis scheme should fail")
	}
}
