package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_GetUpdates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/bottest-token/getUpdates", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "7", r.Form.Get("offset"))
			assert.Equal(t, `["message"]`, r.Form.Get("allowed_updates"))

			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"/help"}},
				{"update_id":8}
			]}`))
		},
	))
	defer srv.Close()

	c := newAPIClient(srv.URL, "test-token", time.Second)
	updates, err := c.getUpdates(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	require.NotNil(t, updates[0].Message)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
	assert.Equal(t, "/help", updates[0].Message.Text)
	assert.Nil(t, updates[1].Message, "non-message updates still advance the offset")
}

func TestAPIClient_GetUpdatesRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
		},
	))
	defer srv.Close()

	c := newAPIClient(srv.URL, "bad-token", time.Second)
	_, err := c.getUpdates(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestBot_RunDispatchesAndAdvancesOffset(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/bottest-token/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch polls.Add(1) {
		case 1:
			assert.Equal(t, "0", r.Form.Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"chat":{"id":42},"text":"/help"}}
			]}`))
		default:
			assert.Equal(t, "11", r.Form.Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		}
	})
	// No other Bot API methods should be needed for /help handling
	// besides the notifier, which is faked below.
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newBotFixture(t, http.NewServeMux())
	f.bot.api = newAPIClient(srv.URL, "test-token", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(f.notifier.texts()) == 1 && polls.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}

	assert.Contains(t, f.notifier.texts()[0], "Tesla Tracker Commands")
}
