package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/autotrader-watch/config"
)

// Open builds the backend selected by cfg. The ledger may live apart from
// the listing collections.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	var base Backend
	switch cfg.StoreBackend {
	case "memory":
		base = NewMemory()
	case "mongo":
		m, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		base = m
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.LedgerBackend != "redis" {
		return base, nil
	}
	ledger, err := NewRedisLedger(ctx, cfg.RedisURL, cfg.RedisLedgerKey)
	if err != nil {
		_ = base.Close(ctx)
		return nil, err
	}
	return &splitBackend{Backend: base, ledger: ledger}, nil
}

// splitBackend keeps listings in one backend and the ledger in Redis.
type splitBackend struct {
	Backend
	ledger *RedisLedger
}

func (s *splitBackend) Sent() SentLedger { return s.ledger }

func (s *splitBackend) Close(ctx context.Context) error {
	return errors.Join(s.Backend.Close(ctx), s.ledger.Close())
}
