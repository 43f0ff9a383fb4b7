package cache

import (
	"context"
	"time"

	"github.com/jonathan/cv-ranker/internal/db"
)

// PostgresStore keeps entries in the cache_entries table. The caller owns the
// database handle; Close does not close it.
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a store over an open database
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

// Name implements Store
func (p *PostgresStore) Name() string { return "postgres" }

// Load implements Store
func (p *PostgresStore) Load(ctx context.Context, key string) (*Entry, error) {
	row, err := p.db.GetCacheEntry(ctx, key)
	if err != nil || row == nil {
		return nil, err
	}
	e := fromRow(row)
	return &e, nil
}

// Save implements Store
func (p *PostgresStore) Save(ctx context.Context, entry Entry) error {
	return p.db.UpsertCacheEntry(ctx, &db.CacheEntry{
		Key:        entry.Key,
		Value:      entry.Value,
		Size:       entry.Size,
		CreatedAt:  entry.CreatedAt,
		TTLSeconds: ttlSeconds(entry.TTL),
	})
}

// ttlSeconds rounds a positive TTL up to whole seconds so that a sub-second
// TTL is not stored as 0, which means no expiry
func ttlSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// Remove implements Store
func (p *PostgresStore) Remove(ctx context.Context, key string) (bool, error) {
	return p.db.DeleteCacheEntry(ctx, key)
}

// RemoveAll implements Store
func (p *PostgresStore) RemoveAll(ctx context.Context) (int, error) {
	n, err := p.db.DeleteAllCacheEntries(ctx)
	return int(n), err
}

// RemoveExpired deletes every entry whose TTL elapsed before now in one statement
func (p *PostgresStore) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := p.db.DeleteExpiredCacheEntries(ctx, now)
	return int(n), err
}

// List implements Store
func (p *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.ListCacheEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

// Close implements Store
func (p *PostgresStore) Close() error { return nil }

func fromRow(row *db.CacheEntry) Entry {
	return Entry{
		Key:       row.Key,
		Value:     row.Value,
		Size:      row.Size,
		CreatedAt: row.CreatedAt,
		TTL:       row.TTL(),
	}
}
