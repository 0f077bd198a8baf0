// Package pgkv provides a PostgreSQL implementation of kvstore.KV.
package pgkv

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/civitas/internal/report/kvstore"
)

var tracer = otel.Tracer("github.com/linnemanlabs/civitas/internal/report/pgkv")

//go:embed schema.sql
var schema string

const upsertBlob = `INSERT INTO kv_blobs (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET
		value      = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at`

// Store persists blobs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New pings the pool, applies the schema, and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Get retrieves the blob stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "pgkv.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
		attribute.String("civitas.kv.key", key),
	))
	defer span.End()

	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_blobs WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a single blob.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, kvstore.Entry{Key: key, Value: value})
}

// SetMany upserts all entries in one transaction, in order.
func (s *Store) SetMany(ctx context.Context, entries ...kvstore.Entry) error {
	ctx, span := tracer.Start(ctx, "pgkv.SetMany", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
		attribute.Int("civitas.kv.entries", len(entries)),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	for _, e := range entries {
		if _, err := tx.Exec(ctx, upsertBlob, e.Key, e.Value); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upsert %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
