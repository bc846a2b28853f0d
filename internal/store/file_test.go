package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XaviFortes/tesla-tracker/internal/store"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

func testSubscriber(chatID string) *domain.Subscriber {
	return &domain.Subscriber{
		ChatID: chatID,
		Tokens: domain.TokenPair{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		},
		IntervalMinutes: 30,
	}
}

func newFileStore(t *testing.T) (*store.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subscribers.json")
	s, err := store.NewFileStore(path)
	require.NoError(t, err)
	return s, path
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, path := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))

	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{
		ID:          "ab12cd",
		Model:       domain.ModelY,
		Market:      "ES",
		Condition:   domain.ConditionNew,
		MaxPrice:    ptr(45000.0),
		OptionCodes: []string{"$MTY41", "$PPSW"},
	}))
	require.NoError(t, s.UpdateOrders(ctx, "100", map[string]domain.OrderState{
		"RN123": {VIN: "5YJYGDEE5MF000001", DeliveryWindow: "Dec 1 - Dec 15", Summary: json.RawMessage(`{"x":1}`)},
	}))

	// Reopen from disk: every field must survive the round trip.
	reopened, err := store.NewFileStore(path)
	require.NoError(t, err)

	sub, err := reopened.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", sub.Tokens.RefreshToken)
	assert.Equal(t, 30, sub.IntervalMinutes)
	require.Len(t, sub.Watches, 1)
	assert.Equal(t, []string{"$MTY41", "$PPSW"}, sub.Watches[0].OptionCodes)
	require.Contains(t, sub.Orders, "RN123")
	assert.Equal(t, "Dec 1 - Dec 15", sub.Orders["RN123"].DeliveryWindow)
}

func TestFileStore_GetNotFound(t *testing.T) {
	t.Parallel()

	s, _ := newFileStore(t)
	_, err := s.GetSubscriber(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFileStore_PutPreservesOwnedState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))
	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{ID: "w1", Model: domain.Model3}))
	require.NoError(t, s.UpdateOrders(ctx, "100", map[string]domain.OrderState{"RN1": {}}))

	// Re-login with fresh tokens must not drop the snapshot or watches.
	relogin := testSubscriber("100")
	relogin.Tokens = domain.TokenPair{RefreshToken: "rt-2"}
	require.NoError(t, s.PutSubscriber(ctx, relogin))

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rt-2", sub.Tokens.RefreshToken)
	assert.Empty(t, sub.Tokens.AccessToken)
	assert.Len(t, sub.Watches, 1)
	assert.Contains(t, sub.Orders, "RN1")
}

func TestFileStore_UpdateTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))

	err := s.UpdateTokens(ctx, "100", domain.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"})
	require.NoError(t, err)

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "at-2", sub.Tokens.AccessToken)
	assert.Equal(t, "rt-2", sub.Tokens.RefreshToken)

	assert.ErrorIs(t,
		s.UpdateTokens(ctx, "missing", domain.TokenPair{}),
		store.ErrNotFound,
	)
}

func TestFileStore_DeleteSubscriberCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, path := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))
	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{ID: "w1"}))

	require.NoError(t, s.DeleteSubscriber(ctx, "100"))

	_, err := s.GetSubscriber(ctx, "100")
	assert.ErrorIs(t, err, store.ErrNotFound)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "w1")

	assert.ErrorIs(t, s.DeleteSubscriber(ctx, "100"), store.ErrNotFound)
}

func TestFileStore_WatchLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))

	w := domain.Watch{ID: "w1", Model: domain.ModelY, Market: "ES", Condition: domain.ConditionNew}
	require.NoError(t, s.AddWatch(ctx, "100", w))

	w.MaxPrice = ptr(40000.0)
	require.NoError(t, s.UpdateWatch(ctx, "100", w))

	require.NoError(t, s.UpdateWatchSeen(ctx, "100", "w1", map[string]bool{"VIN1": true}))

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	require.Len(t, sub.Watches, 1)
	assert.InDelta(t, 40000.0, *sub.Watches[0].MaxPrice, 0.001)
	assert.True(t, sub.Watches[0].SeenVINs["VIN1"])

	assert.ErrorIs(t, s.UpdateWatch(ctx, "100", domain.Watch{ID: "nope"}), store.ErrWatchNotFound)
	assert.ErrorIs(t, s.DeleteWatch(ctx, "100", "nope"), store.ErrWatchNotFound)

	require.NoError(t, s.DeleteWatch(ctx, "100", "w1"))
	sub, err = s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Empty(t, sub.Watches)
}

func TestFileStore_ClearWatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))
	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{ID: "w1"}))
	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{ID: "w2"}))

	require.NoError(t, s.ClearWatches(ctx, "100"))

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Empty(t, sub.Watches)
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))
	require.NoError(t, s.AddWatch(ctx, "100", domain.Watch{
		ID: "w1", SeenVINs: map[string]bool{"A": true},
	}))

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	sub.Watches[0].SeenVINs["B"] = true
	sub.Tokens.RefreshToken = "mutated"

	fresh, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.False(t, fresh.Watches[0].SeenVINs["B"])
	assert.Equal(t, "rt-1", fresh.Tokens.RefreshToken)
}

func TestFileStore_AtomicPersistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, path := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))

	// No temp file may linger after a successful write.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// The on-disk document is complete, valid JSON at all times.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, _ := newFileStore(t)
	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))

	// Simulate the order job and the inventory job updating concurrently.
	done := make(chan error, 2)
	go func() {
		done <- s.UpdateOrders(ctx, "100", map[string]domain.OrderState{"RN1": {}})
	}()
	go func() {
		done <- s.UpdateTokens(ctx, "100", domain.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"})
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Contains(t, sub.Orders, "RN1")
	assert.Equal(t, "rt-2", sub.Tokens.RefreshToken)
}

func TestFileStore_CorruptFileRejected(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := store.NewFileStore(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing store file")
}

func TestFileStore_TimestampsSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fixed := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "subscribers.json")
	s, err := store.NewFileStore(path, store.WithFileNowFunc(func() time.Time { return fixed }))
	require.NoError(t, err)

	require.NoError(t, s.PutSubscriber(ctx, testSubscriber("100")))
	sub, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, fixed, sub.CreatedAt)
	assert.Equal(t, fixed, sub.UpdatedAt)
}

func ptr[T any](v T) *T {
	return &v
}
