package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLSeconds(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want int64
	}{
		{"No expiry", 0, 0},
		{"Negative", -time.Second, 0},
		{"Sub-second", 500 * time.Millisecond, 1},
		{"One nanosecond", time.Nanosecond, 1},
		{"Whole second", time.Second, 1},
		{"Fractional", 1500 * time.Millisecond, 2},
		{"Day", 24 * time.Hour, 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ttlSeconds(tt.ttl))
		})
	}
}

func TestPostgresStore_ImplementsExpiringStore(t *testing.T) {
	var store Store = NewPostgresStore(nil)
	_, ok := store.(ExpiringStore)
	assert.True(t, ok)
}
