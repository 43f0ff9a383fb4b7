// Package cache memoizes expensive computations (embeddings, similarity
// scores) behind a pluggable store with time-based expiry.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jonathan/cv-ranker/internal/logger"
)

// DefaultTTL is the entry lifetime used when none is configured
const DefaultTTL = 24 * time.Hour

// Entry is a stored value with its expiry metadata
type Entry struct {
	Key       string        `json:"key"`
	Value     []byte        `json:"value"`
	Size      int64         `json:"size"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry outlived its TTL at now. A zero TTL never expires.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Stats summarizes the contents of a cache
type Stats struct {
	EntryCount int           `json:"entry_count"`
	TotalSize  int64         `json:"total_size"`
	TTL        time.Duration `json:"ttl"`
	Backend    string        `json:"backend"`
}

// Service is a TTL cache over a Store. Store failures never propagate: a failed
// read is a miss and a failed write is dropped. A nil *Service is a disabled
// cache that always misses.
type Service struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger used for store failures
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger.OrNop(l)
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a cache over store. A nil store means an in-memory store and a
// non-positive ttl means DefaultTTL.
func New(store Store, ttl time.Duration, opts ...Option) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key derives a cache key from an operation name and its arguments:
// the hex BLAKE2b-256 digest of the operation and each JSON-encoded argument.
func Key(op string, args ...any) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(op))
	for _, arg := range args {
		h.Write([]byte{0})
		b, err := json.Marshal(arg)
		if err != nil {
			b = []byte(fmt.Sprintf("%#v", arg))
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value stored under key. Missing, expired and unreadable
// entries are all misses; expired entries are evicted.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}

	entry, err := s.store.Load(ctx, key)
	if err != nil {
		s.warn("load", key, err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	if entry.Expired(s.now()) {
		if _, err := s.store.Remove(ctx, key); err != nil {
			s.warn("evict", key, err)
		}
		return nil, false
	}

	return entry.Value, true
}

// Set stores value under key with the service TTL. It reports whether the write succeeded.
func (s *Service) Set(ctx context.Context, key string, value []byte) bool {
	if s == nil {
		return false
	}
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

// SetWithTTL stores value under key with a specific TTL
func (s *Service) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if s == nil {
		return false
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	err := s.store.Save(ctx, Entry{
		Key:       key,
		Value:     stored,
		Size:      int64(len(stored)),
		CreatedAt: s.now(),
		TTL:       ttl,
	})
	if err != nil {
		s.warn("save", key, err)
		return false
	}
	return true
}

// Delete removes key and reports whether it was present
func (s *Service) Delete(ctx context.Context, key string) bool {
	if s == nil {
		return false
	}

	removed, err := s.store.Remove(ctx, key)
	if err != nil {
		s.warn("delete", key, err)
		return false
	}
	return removed
}

// Clear removes every entry and returns how many were removed
func (s *Service) Clear(ctx context.Context) int {
	if s == nil {
		return 0
	}

	n, err := s.store.RemoveAll(ctx)
	if err != nil {
		s.warn("clear", "", err)
	}
	return n
}

// ClearExpired removes expired entries and returns how many were removed
func (s *Service) ClearExpired(ctx context.Context) int {
	if s == nil {
		return 0
	}

	now := s.now()
	if es, ok := s.store.(ExpiringStore); ok {
		n, err := es.RemoveExpired(ctx, now)
		if err != nil {
			s.warn("evict", "", err)
			return 0
		}
		return n
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		s.warn("list", "", err)
		return 0
	}

	removed := 0
	for i := range entries {
		if !entries[i].Expired(now) {
			continue
		}
		ok, err := s.store.Remove(ctx, entries[i].Key)
		if err != nil {
			s.warn("evict", entries[i].Key, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed
}

// Stats reports the entry count and total value size of the store
func (s *Service) Stats(ctx context.Context) Stats {
	if s == nil {
		return Stats{Backend: "none"}
	}

	stats := Stats{TTL: s.ttl, Backend: s.store.Name()}
	entries, err := s.store.List(ctx)
	if err != nil {
		s.warn("list", "", err)
		return stats
	}

	stats.EntryCount = len(entries)
	for i := range entries {
		stats.TotalSize += entries[i].Size
	}
	return stats
}

// TTL returns the default entry lifetime
func (s *Service) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

// Close releases the underlying store
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Service) warn(op, key string, err error) {
	s.logger.Warn("cache store failure, continuing without cache",
		zap.String(logger.FieldOp, op),
		zap.String(logger.FieldKey, key),
		zap.Error(&StoreError{Op: op, Key: key, Cause: err}),
	)
}

// GetJSON decodes the value stored under key into T. Undecodable values are misses.
func GetJSON[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var out T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.warn("decode", key, err)
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes value as JSON and stores it under key
func SetJSON[T any](ctx context.Context, s *Service, key string, value T) bool {
	if s == nil {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.warn("encode", key, err)
		return false
	}
	return s.Set(ctx, key, raw)
}
