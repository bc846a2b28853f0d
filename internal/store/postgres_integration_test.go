//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/XaviFortes/tesla-tracker/internal/store"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tracker_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresStore_SubscriberLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	sub := &domain.Subscriber{
		ChatID:          "100",
		Tokens:          domain.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"},
		IntervalMinutes: 30,
	}
	require.NoError(t, s.PutSubscriber(ctx, sub))

	got, err := s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", got.Tokens.RefreshToken)
	assert.Equal(t, 30, got.IntervalMinutes)

	require.NoError(t, s.UpdateTokens(ctx, "100", domain.TokenPair{
		AccessToken: "at-2", RefreshToken: "rt-2",
	}))
	require.NoError(t, s.UpdateInterval(ctx, "100", 60))
	require.NoError(t, s.UpdateOrders(ctx, "100", map[string]domain.OrderState{
		"RN1": {VIN: "5YJ3E1EA1KF000001", DeliveryWindow: "Dec 1 - Dec 15"},
	}))

	got, err = s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "at-2", got.Tokens.AccessToken)
	assert.Equal(t, 60, got.IntervalMinutes)
	require.Contains(t, got.Orders, "RN1")
	assert.Equal(t, "Dec 1 - Dec 15", got.Orders["RN1"].DeliveryWindow)

	// Re-login preserves the snapshot.
	require.NoError(t, s.PutSubscriber(ctx, &domain.Subscriber{
		ChatID: "100",
		Tokens: domain.TokenPair{RefreshToken: "rt-3"},
	}))
	got, err = s.GetSubscriber(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "rt-3", got.Tokens.RefreshToken)
	assert.Contains(t, got.Orders, "RN1")

	require.NoError(t, s.DeleteSubscriber(ctx, "100"))
	_, err = s.GetSubscriber(ctx, "100")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_WatchMutations(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.PutSubscriber(ctx, &domain.Subscriber{
		ChatID: "200",
		Tokens: domain.TokenPair{RefreshToken: "rt"},
	}))

	maxPrice := 45000.0
	w := domain.Watch{
		ID:          "ab12cd",
		Model:       domain.ModelY,
		Market:      "ES",
		Condition:   domain.ConditionNew,
		MaxPrice:    &maxPrice,
		OptionCodes: []string{"$MTY41"},
	}
	require.NoError(t, s.AddWatch(ctx, "200", w))

	require.NoError(t, s.UpdateWatchSeen(ctx, "200", "ab12cd", map[string]bool{"VIN1": true}))

	got, err := s.GetSubscriber(ctx, "200")
	require.NoError(t, err)
	require.Len(t, got.Watches, 1)
	assert.True(t, got.Watches[0].SeenVINs["VIN1"])

	assert.ErrorIs(t,
		s.UpdateWatchSeen(ctx, "200", "missing", nil),
		store.ErrWatchNotFound,
	)

	require.NoError(t, s.DeleteWatch(ctx, "200", "ab12cd"))
	got, err = s.GetSubscriber(ctx, "200")
	require.NoError(t, err)
	assert.Empty(t, got.Watches)
}

func TestPostgresStore_NotFound(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.GetSubscriber(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateInterval(ctx, "missing", 30), store.ErrNotFound)
	assert.ErrorIs(t, s.AddWatch(ctx, "missing", domain.Watch{ID: "w"}), store.ErrNotFound)
}
