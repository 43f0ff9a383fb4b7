package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		createdAt  time.Time
		ttlSeconds int64
		expected   bool
	}{
		{"Fresh entry", now.Add(-1 * time.Hour), 24 * 3600, false},
		{"Expired entry", now.Add(-25 * time.Hour), 24 * 3600, true},
		{"Exactly at TTL", now.Add(-1 * time.Hour), 3600, false},
		{"No TTL never expires", now.Add(-1000 * time.Hour), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CacheEntry{CreatedAt: tt.createdAt, TTLSeconds: tt.ttlSeconds}
			assert.Equal(t, tt.expected, e.IsExpired(now))
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	e := &CacheEntry{TTLSeconds: 90}
	assert.Equal(t, 90*time.Second, e.TTL())
}

func TestRunStatusConstants(t *testing.T) {
	for _, s := range []string{RunStatusRunning, RunStatusCompleted, RunStatusCancelled, RunStatusFailed} {
		assert.NotEmpty(t, s)
	}
}

func TestSchemaStatements(t *testing.T) {
	joined := ""
	for _, s := range schemaStatements {
		joined += s
	}
	assert.Contains(t, joined, "cache_entries")
	assert.Contains(t, joined, "index_entries")
	assert.Contains(t, joined, "embedding   vector")
	assert.Contains(t, joined, "ranking_runs")
}
