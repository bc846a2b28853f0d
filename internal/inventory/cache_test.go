package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	"github.com/XaviFortes/tesla-tracker/pkg/logger"
)

// fakeSearcher counts fetches and serves canned results or an error.
type fakeSearcher struct {
	calls   atomic.Int32
	results []tesla.Vehicle
	err     error
	delay   time.Duration
}

func (f *fakeSearcher) Search(
	_ context.Context,
	_ tesla.InventoryQuery,
) ([]tesla.Vehicle, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestResultCache_ServesFromCacheWithinTTL(t *testing.T) {
	t.Parallel()

	now := time.Now()
	searcher := &fakeSearcher{results: []tesla.Vehicle{{VIN: "VIN1"}}}
	cache := inventory.NewResultCache(searcher,
		inventory.WithTTL(5*time.Minute),
		inventory.WithCacheNowFunc(func() time.Time { return now }),
		inventory.WithCacheLogger(logger.Quiet()),
	)

	q := tesla.InventoryQuery{Model: "my", Condition: "new", Market: "ES"}

	first, err := cache.Results(context.Background(), q)
	require.NoError(t, err)
	second, err := cache.Results(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), searcher.calls.Load())
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	current := now
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	searcher := &fakeSearcher{results: []tesla.Vehicle{{VIN: "VIN1"}}}
	cache := inventory.NewResultCache(searcher,
		inventory.WithTTL(5*time.Minute),
		inventory.WithCacheNowFunc(clock),
		inventory.WithCacheLogger(logger.Quiet()),
	)

	q := tesla.InventoryQuery{Model: "my", Condition: "new", Market: "ES"}

	_, err := cache.Results(context.Background(), q)
	require.NoError(t, err)

	mu.Lock()
	current = now.Add(5 * time.Minute)
	mu.Unlock()

	_, err = cache.Results(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), searcher.calls.Load(),
		"entry at exactly TTL age is stale")
}

func TestResultCache_DistinctFingerprintsFetchSeparately(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	cache := inventory.NewResultCache(searcher,
		inventory.WithCacheLogger(logger.Quiet()),
	)

	ctx := context.Background()
	_, err := cache.Results(ctx, tesla.InventoryQuery{
		Model: "my", Condition: "new", Market: "ES",
	})
	require.NoError(t, err)
	_, err = cache.Results(ctx, tesla.InventoryQuery{
		Model: "my", Condition: "new", Market: "ES", Trim: "LRAWD",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), searcher.calls.Load())
}

func TestResultCache_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("blocked")}
	cache := inventory.NewResultCache(searcher,
		inventory.WithCacheLogger(logger.Quiet()),
	)

	q := tesla.InventoryQuery{Model: "my", Condition: "new", Market: "ES"}

	_, err := cache.Results(context.Background(), q)
	require.Error(t, err)

	// Upstream recovers; the failure must not have poisoned the cache.
	searcher.err = nil
	searcher.results = []tesla.Vehicle{{VIN: "VIN1"}}

	results, err := cache.Results(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(2), searcher.calls.Load())
}

func TestResultCache_ConcurrentSameQuerySingleFetch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		results: []tesla.Vehicle{{VIN: "VIN1"}},
		delay:   50 * time.Millisecond,
	}
	cache := inventory.NewResultCache(searcher,
		inventory.WithCacheLogger(logger.Quiet()),
	)

	q := tesla.InventoryQuery{Model: "my", Condition: "new", Market: "ES"}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Results(context.Background(), q)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load(),
		"concurrent identical queries must share one fetch")
}

func TestUnseen(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{"VIN-OLD": true}
	matches := []tesla.Vehicle{
		{VIN: "VIN-OLD"},
		{VIN: "VIN-NEW"},
		{VIN: ""},
	}

	fresh, updated := inventory.Unseen(seen, matches)

	require.Len(t, fresh, 2)
	assert.Equal(t, "VIN-NEW", fresh[0].VIN)
	assert.Empty(t, fresh[1].VIN, "VIN-less vehicles are always fresh")

	assert.True(t, updated["VIN-OLD"])
	assert.True(t, updated["VIN-NEW"])
	assert.NotContains(t, updated, "")

	// Input set untouched.
	assert.Len(t, seen, 1)
}

func TestUnseen_RepeatCycleIsQuiet(t *testing.T) {
	t.Parallel()

	matches := []tesla.Vehicle{{VIN: "VIN1"}, {VIN: "VIN2"}}

	fresh, updated := inventory.Unseen(nil, matches)
	assert.Len(t, fresh, 2)

	fresh, _ = inventory.Unseen(updated, matches)
	assert.Empty(t, fresh, "same matches again produce no new alerts")
}
