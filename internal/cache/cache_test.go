package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), time.Hour)

	assert.True(t, svc.Set(ctx, "k", []byte("value")))

	got, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	_, ok = svc.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestService_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, time.Hour)

	buf := []byte("abc")
	svc.Set(ctx, "k", buf)
	buf[0] = 'z'

	got, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)
}

func TestService_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, time.Hour)

	svc.Set(ctx, "k", []byte("first"))
	svc.Set(ctx, "k", []byte("second"))

	got, _ := svc.Get(ctx, "k")
	assert.Equal(t, []byte("second"), got)
}

func TestService_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	svc := New(store, time.Hour, WithClock(clock.Now))

	svc.Set(ctx, "k", []byte("v"))

	clock.Advance(59 * time.Minute)
	_, ok := svc.Get(ctx, "k")
	assert.True(t, ok, "entry should still be fresh")

	clock.Advance(2 * time.Minute)
	_, ok = svc.Get(ctx, "k")
	assert.False(t, ok, "entry should have expired")

	// Expired entries are evicted on read
	entry, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestService_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := New(nil, time.Hour, WithClock(clock.Now))

	svc.SetWithTTL(ctx, "short", []byte("v"), time.Minute)
	svc.Set(ctx, "long", []byte("v"))

	clock.Advance(2 * time.Minute)
	_, ok := svc.Get(ctx, "short")
	assert.False(t, ok)
	_, ok = svc.Get(ctx, "long")
	assert.True(t, ok)
}

func TestService_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, time.Hour)

	svc.Set(ctx, "a", []byte("1"))
	svc.Set(ctx, "b", []byte("2"))
	svc.Set(ctx, "c", []byte("3"))

	assert.True(t, svc.Delete(ctx, "a"))
	assert.False(t, svc.Delete(ctx, "a"))

	assert.Equal(t, 2, svc.Clear(ctx))
	assert.Equal(t, 0, svc.Stats(ctx).EntryCount)
}

func TestService_ClearExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := New(nil, time.Hour, WithClock(clock.Now))

	svc.Set(ctx, "old-1", []byte("x"))
	svc.Set(ctx, "old-2", []byte("x"))
	clock.Advance(90 * time.Minute)
	svc.Set(ctx, "fresh", []byte("x"))

	assert.Equal(t, 2, svc.ClearExpired(ctx))

	stats := svc.Stats(ctx)
	assert.Equal(t, 1, stats.EntryCount)
	_, ok := svc.Get(ctx, "fresh")
	assert.True(t, ok)
}

// bulkExpiryStore records the ExpiringStore calls made on top of a MemoryStore
type bulkExpiryStore struct {
	*MemoryStore
	calls int
	at    time.Time
	err   error
}

func (b *bulkExpiryStore) RemoveExpired(_ context.Context, now time.Time) (int, error) {
	b.calls++
	b.at = now
	if b.err != nil {
		return 0, b.err
	}
	return 7, nil
}

func (b *bulkExpiryStore) List(context.Context) ([]Entry, error) {
	return nil, errors.New("list should not be called")
}

func TestService_ClearExpired_UsesBulkRemoval(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		want     int
		warnings int
	}{
		{"Removed", nil, 7, 0},
		{"Failure", errStoreDown, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			core, observed := observer.New(zapcore.WarnLevel)
			store := &bulkExpiryStore{MemoryStore: NewMemoryStore(), err: tt.storeErr}
			svc := New(store, time.Hour, WithClock(clock.Now), WithLogger(zap.New(core)))

			assert.Equal(t, tt.want, svc.ClearExpired(ctx))
			assert.Equal(t, 1, store.calls)
			assert.Equal(t, clock.Now(), store.at)
			assert.Equal(t, tt.warnings, observed.Len())
		})
	}
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	svc := New(NewMemoryStore(), 2*time.Hour)

	svc.Set(ctx, "a", []byte("12345"))
	svc.Set(ctx, "b", []byte("123"))

	stats := svc.Stats(ctx)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, int64(8), stats.TotalSize)
	assert.Equal(t, 2*time.Hour, stats.TTL)
	assert.Equal(t, "memory", stats.Backend)
}

func TestNew_Defaults(t *testing.T) {
	svc := New(nil, 0)
	assert.Equal(t, DefaultTTL, svc.TTL())
	assert.Equal(t, "memory", svc.Stats(context.Background()).Backend)
}

func TestKey(t *testing.T) {
	k1 := Key("text_similarity", "a", "b")
	k2 := Key("text_similarity", "a", "b")
	k3 := Key("text_similarity", "b", "a")
	k4 := Key("embed", "a", "b")
	k5 := Key("text_similarity", "ab")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.NotEqual(t, k1, k5)
	assert.Len(t, k1, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, k1)
}

func TestKey_UnencodableArgument(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Len(t, Key("op", make(chan int)), 64)
	})
}

// failingStore fails every operation
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Name() string                                 { return "failing" }
func (failingStore) Load(context.Context, string) (*Entry, error) { return nil, errStoreDown }
func (failingStore) Save(context.Context, Entry) error            { return errStoreDown }
func (failingStore) Remove(context.Context, string) (bool, error) { return false, errStoreDown }
func (failingStore) RemoveAll(context.Context) (int, error)       { return 0, errStoreDown }
func (failingStore) List(context.Context) ([]Entry, error)        { return nil, errStoreDown }
func (failingStore) Close() error                                 { return nil }

func TestService_StoreFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	core, observed := observer.New(zapcore.WarnLevel)
	svc := New(failingStore{}, time.Hour, WithLogger(zap.New(core)))

	assert.False(t, svc.Set(ctx, "k", []byte("v")))
	_, ok := svc.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, svc.Delete(ctx, "k"))
	assert.Equal(t, 0, svc.Clear(ctx))
	assert.Equal(t, 0, svc.ClearExpired(ctx))
	assert.Equal(t, 0, svc.Stats(ctx).EntryCount)

	entries := observed.All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "save", entries[0].ContextMap()["op"])
	assert.Equal(t, "k", entries[0].ContextMap()["key"])
}

func TestService_NilIsDisabled(t *testing.T) {
	ctx := context.Background()
	var svc *Service

	assert.False(t, svc.Set(ctx, "k", []byte("v")))
	_, ok := svc.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, svc.Delete(ctx, "k"))
	assert.Equal(t, 0, svc.Clear(ctx))
	assert.Equal(t, 0, svc.ClearExpired(ctx))
	assert.Equal(t, "none", svc.Stats(ctx).Backend)
	assert.NoError(t, svc.Close())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, time.Hour)

	assert.True(t, SetJSON(ctx, svc, "vec", []float32{0.5, 0.25}))
	got, ok := GetJSON[[]float32](ctx, svc, "vec")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.25}, got)

	svc.Set(ctx, "bad", []byte("not json"))
	_, ok = GetJSON[float64](ctx, svc, "bad")
	assert.False(t, ok)

	_, ok = GetJSON[float64](ctx, nil, "vec")
	assert.False(t, ok)
}

func TestService_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("op", i%5)
			svc.Set(ctx, key, []byte{byte(i)})
			svc.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, svc.Stats(ctx).EntryCount)
}

func TestStoreError(t *testing.T) {
	err := &StoreError{Op: "load", Key: "abc", Cause: errStoreDown}
	assert.Equal(t, "cache store load abc: store down", err.Error())
	assert.ErrorIs(t, err, errStoreDown)

	err = &StoreError{Op: "list", Cause: errStoreDown}
	assert.Equal(t, "cache store list: store down", err.Error())
}
