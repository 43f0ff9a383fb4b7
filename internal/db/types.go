package db

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is a row of the cache_entries table
type CacheEntry struct {
	Key        string    `json:"key"`
	Value      []byte    `json:"-"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// TTL returns the entry lifetime. Zero means the entry never expires.
func (e *CacheEntry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}

// IsExpired reports whether the entry outlived its TTL at now
func (e *CacheEntry) IsExpired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL()
}

// IndexEntryRow is a persisted vector index entry
type IndexEntryRow struct {
	ID        uuid.UUID `json:"id"`
	IndexName string    `json:"index_name"`
	Position  int       `json:"position"`
	ChunkText string    `json:"chunk_text"`
	SourceRef string    `json:"source_ref"`
	Fragment  string    `json:"fragment"`
	Embedding []float32 `json:"-"`
}

// RunStatus values for ranking runs
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// Run is a ranking run record
type Run struct {
	ID            uuid.UUID  `json:"id"`
	RequirementID string     `json:"requirement_id"`
	Status        string     `json:"status"`
	Candidates    int        `json:"candidates"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
