package vectorindex

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-ranker/internal/db"
	"github.com/jonathan/cv-ranker/internal/types"
)

// Store persists index entries under a name
type Store interface {
	SaveEntries(ctx context.Context, name string, entries []types.IndexEntry) error
	LoadEntries(ctx context.Context, name string) ([]types.IndexEntry, error)
}

// Snapshot writes every entry of the index to store under name
func (idx *Index) Snapshot(ctx context.Context, store Store, name string) error {
	if err := store.SaveEntries(ctx, name, idx.Entries()); err != nil {
		return fmt.Errorf("failed to snapshot index %s: %w", name, err)
	}
	return nil
}

// Restore appends the entries stored under name without re-embedding them.
// Like Add, it fails on a frozen index or a dimension mismatch.
func (idx *Index) Restore(ctx context.Context, store Store, name string) error {
	entries, err := store.LoadEntries(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to restore index %s: %w", name, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.frozen {
		return ErrFrozen
	}

	dim := idx.dim
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("restored entry %s: got %d, want %d: %w", e.Chunk.SourceRef, len(e.Vector), dim, ErrDimensionMismatch)
		}
	}
	idx.dim = dim

	for _, e := range entries {
		vec, zero := normalize(e.Vector)
		e.Vector = vec
		idx.entries = append(idx.entries, entry{IndexEntry: e, zero: zero})
		idx.chunks[e.Chunk] = struct{}{}
	}
	return nil
}

// PostgresStore persists index entries in the index_entries table (pgvector)
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a store over an open database
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

// SaveEntries implements Store
func (p *PostgresStore) SaveEntries(ctx context.Context, name string, entries []types.IndexEntry) error {
	rows := make([]db.IndexEntryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, db.IndexEntryRow{
			IndexName: name,
			ChunkText: e.Chunk.Text,
			SourceRef: e.Chunk.SourceRef,
			Fragment:  e.Fragment,
			Embedding: e.Vector,
		})
	}
	return p.db.ReplaceIndexEntries(ctx, name, rows)
}

// LoadEntries implements Store
func (p *PostgresStore) LoadEntries(ctx context.Context, name string) ([]types.IndexEntry, error) {
	rows, err := p.db.ListIndexEntries(ctx, name)
	if err != nil {
		return nil, err
	}
	entries := make([]types.IndexEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, types.IndexEntry{
			Chunk:    types.Chunk{Text: r.ChunkText, SourceRef: r.SourceRef},
			Fragment: r.Fragment,
			Vector:   r.Embedding,
		})
	}
	return entries, nil
}
