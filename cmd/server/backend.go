package main

import (
	"context"
	"fmt"

	vc "github.com/linnemanlabs/civitas/internal/cfg"
	"github.com/linnemanlabs/civitas/internal/postgres"
	"github.com/linnemanlabs/civitas/internal/report/kvstore"
	"github.com/linnemanlabs/civitas/internal/report/memkv"
	"github.com/linnemanlabs/civitas/internal/report/pgkv"
	"github.com/linnemanlabs/civitas/internal/report/rediskv"
)

// backend is the opened key-value store plus its release func.
type backend struct {
	name  string
	kv    kvstore.KV
	close func()
}

// openBackend picks postgres, redis or memory from the config. Validate has
// already rejected both URLs being set.
func openBackend(ctx context.Context, c vc.Config) (*backend, error) {
	switch {
	case c.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		kv, err := pgkv.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("pgkv init: %w", err)
		}
		return &backend{name: "postgres", kv: kv, close: pool.Close}, nil

	case c.RedisURL != "":
		kv, err := rediskv.Dial(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
		return &backend{name: "redis", kv: kv, close: func() { _ = kv.Close() }}, nil

	default:
		return &backend{name: "memory", kv: memkv.New(), close: func() {}}, nil
	}
}
