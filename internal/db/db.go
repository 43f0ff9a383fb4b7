// Package db provides PostgreSQL storage for cache entries, persisted vector
// index entries and ranking runs.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schemaStatements create the tables used by cv-ranker. They are idempotent.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS cache_entries (
		key         TEXT PRIMARY KEY,
		value       BYTEA NOT NULL,
		size        BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		ttl_seconds BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS index_entries (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		index_name  TEXT NOT NULL,
		position    INTEGER NOT NULL,
		chunk_text  TEXT NOT NULL,
		source_ref  TEXT NOT NULL,
		fragment    TEXT NOT NULL,
		embedding   vector NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (index_name, position)
	)`,
	`CREATE TABLE IF NOT EXISTS ranking_runs (
		id             UUID PRIMARY KEY,
		requirement_id TEXT NOT NULL,
		status         TEXT NOT NULL,
		candidates     INTEGER NOT NULL DEFAULT 0,
		results        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at   TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables and extensions if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
