package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// ReplaceIndexEntries replaces every entry of the named index within one transaction
func (db *DB) ReplaceIndexEntries(ctx context.Context, indexName string, entries []IndexEntryRow) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM index_entries WHERE index_name = $1`, indexName); err != nil {
		return fmt.Errorf("failed to delete index entries: %w", err)
	}

	batch := &pgx.Batch{}
	for i, e := range entries {
		batch.Queue(
			`INSERT INTO index_entries (index_name, position, chunk_text, source_ref, fragment, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			indexName, i, e.ChunkText, e.SourceRef, e.Fragment, pgvector.NewVector(e.Embedding),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert index entries: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index entries: %w", err)
	}
	return nil
}

// ListIndexEntries returns the entries of the named index in insertion order
func (db *DB) ListIndexEntries(ctx context.Context, indexName string) ([]IndexEntryRow, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, index_name, position, chunk_text, source_ref, fragment, embedding
		 FROM index_entries WHERE index_name = $1 ORDER BY position ASC`,
		indexName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntryRow
	for rows.Next() {
		var e IndexEntryRow
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.IndexName, &e.Position, &e.ChunkText, &e.SourceRef, &e.Fragment, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan index entry: %w", err)
		}
		e.Embedding = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate index entries: %w", err)
	}
	return entries, nil
}
