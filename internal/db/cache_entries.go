package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetCacheEntry retrieves a cache entry by key. It returns nil, nil when absent.
func (db *DB) GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error) {
	var e CacheEntry
	err := db.pool.QueryRow(ctx,
		`SELECT key, value, size, created_at, ttl_seconds FROM cache_entries WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.Value, &e.Size, &e.CreatedAt, &e.TTLSeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return &e, nil
}

// UpsertCacheEntry inserts or replaces a cache entry
func (db *DB) UpsertCacheEntry(ctx context.Context, e *CacheEntry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, value, size, created_at, ttl_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET value = $2, size = $3, created_at = $4, ttl_seconds = $5`,
		e.Key, e.Value, e.Size, e.CreatedAt, e.TTLSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

// DeleteCacheEntry removes a cache entry and reports whether it existed
func (db *DB) DeleteCacheEntry(ctx context.Context, key string) (bool, error) {
	result, err := db.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteAllCacheEntries removes every cache entry
func (db *DB) DeleteAllCacheEntries(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache entries: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpiredCacheEntries removes entries whose TTL elapsed before now
func (db *DB) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM cache_entries
		 WHERE ttl_seconds > 0 AND created_at + ttl_seconds * INTERVAL '1 second' < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListCacheEntries returns entry metadata without values, oldest first
func (db *DB) ListCacheEntries(ctx context.Context) ([]CacheEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT key, size, created_at, ttl_seconds FROM cache_entries ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.Key, &e.Size, &e.CreatedAt, &e.TTLSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache entries: %w", err)
	}
	return entries, nil
}
