package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XaviFortes/tesla-tracker/internal/engine"
	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/store"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	"github.com/XaviFortes/tesla-tracker/pkg/logger"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

type capturedNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *capturedNotifier) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *capturedNotifier) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Text
	}
	return out
}

func (c *capturedNotifier) last() notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return notify.Message{}
	}
	return c.sent[len(c.sent)-1]
}

type botFixture struct {
	bot      *Bot
	store    store.Store
	notifier *capturedNotifier
	sched    *engine.Scheduler
}

// ownerHandler serves orders and tasks with static data.
func ownerHandler(t *testing.T, orders []tesla.Order, window string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": orders})
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": map[string]any{
				"scheduling": map[string]any{"deliveryWindowDisplay": window},
			},
		})
	})
	return mux
}

func newBotFixture(t *testing.T, owner http.Handler) *botFixture {
	t.Helper()

	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	srv := httptest.NewServer(owner)
	t.Cleanup(srv.Close)

	ownerClient := tesla.NewOwnerClient(
		tesla.NewTokenExchanger(tesla.WithTokenURL(srv.URL+"/token")),
		fs,
		tesla.WithOrdersURL(srv.URL+"/orders"),
		tesla.WithTasksURL(srv.URL+"/tasks"),
		tesla.WithLogger(logger.Quiet()),
	)

	notifier := &capturedNotifier{}
	cache := inventory.NewResultCache(
		&staticSearcher{},
		inventory.WithCacheLogger(logger.Quiet()),
	)
	eng := engine.NewEngine(fs, ownerClient, cache, notifier,
		engine.WithLogger(logger.Quiet()),
	)
	sched := engine.NewScheduler(eng,
		engine.WithWarmup(time.Hour),
		engine.WithSchedulerLogger(logger.Quiet()),
	)
	t.Cleanup(func() { <-sched.Stop().Done() })

	// Telegram API endpoint only matters for deleteMessage here; the
	// owner test server tolerates the extra call.
	b := New("test-token", fs, ownerClient, eng, sched, notifier,
		WithAPIEndpoint(srv.URL),
		WithLogger(logger.Quiet()),
	)
	return &botFixture{bot: b, store: fs, notifier: notifier, sched: sched}
}

func (f *botFixture) command(t *testing.T, text string) {
	t.Helper()
	f.bot.handleMessage(context.Background(), &Message{
		MessageID: 1,
		Chat:      Chat{ID: 42},
		Text:      text,
	})
}

func (f *botFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.PutSubscriber(context.Background(), &domain.Subscriber{
		ChatID:          "42",
		Tokens:          domain.TokenPair{AccessToken: "at", RefreshToken: "rt"},
		IntervalMinutes: 30,
	}))
}

type staticSearcher struct{}

func (staticSearcher) Search(
	_ context.Context,
	_ tesla.InventoryQuery,
) ([]tesla.Vehicle, error) {
	return []tesla.Vehicle{{VIN: "XP7YGCEK5SB342365", Price: 42990}}, nil
}

var testOrders = []tesla.Order{{
	ReferenceNumber: "RN1",
	ModelCode:       "$MDLY",
	VIN:             "XP7YGCEK5SB342365",
	OptionCodeList:  []string{"$MTY41", "$PPSW"},
}}

func TestBot_Help(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/help")

	texts := f.notifier.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "/login")
	assert.Contains(t, texts[0], "/watch add")
}

func TestBot_CommandWithBotSuffix(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/help@TeslaTrackerBot")

	require.Len(t, f.notifier.texts(), 1)
}

func TestBot_Login(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, testOrders, "Dec 1 - Dec 15"))
	f.command(t, "/login some-refresh-token")

	texts := f.notifier.texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Success! Found 1 orders")

	sub, err := f.store.GetSubscriber(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultIntervalMinutes, sub.IntervalMinutes)
	assert.Equal(t, 1, f.sched.Jobs()[engine.JobOrders])
}

func TestBot_LoginWithoutToken(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/login")

	texts := f.notifier.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Usage: /login")
}

func TestBot_LoginRollbackOnBadToken(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	f := newBotFixture(t, mux)

	f.command(t, "/login bad-token")

	texts := f.notifier.texts()
	assert.Contains(t, texts[len(texts)-1], "Login failed")

	_, err := f.store.GetSubscriber(context.Background(), "42")
	assert.ErrorIs(t, err, store.ErrNotFound,
		"rejected credentials must not linger")
	assert.Zero(t, f.sched.Jobs()[engine.JobOrders])
}

func TestBot_Logout(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.login(t)
	f.sched.ScheduleOrders("42", 30*time.Minute)

	f.command(t, "/logout")

	_, err := f.store.GetSubscriber(context.Background(), "42")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, f.sched.Jobs()[engine.JobOrders])
	assert.Contains(t, f.notifier.texts()[0], "Logged out")
}

func TestBot_LogoutWhenNotLoggedIn(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/logout")
	assert.Contains(t, f.notifier.texts()[0], "Logged out")
}

func TestBot_Interval(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.login(t)

	f.command(t, "/interval 60")

	sub, err := f.store.GetSubscriber(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 60, sub.IntervalMinutes)
	assert.Equal(t, 1, f.sched.Jobs()[engine.JobOrders])
}

func TestBot_IntervalValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"below minimum", "/interval 2", "Minimum interval is 5"},
		{"not a number", "/interval soon", "Usage: /interval"},
		{"missing argument", "/interval", "Usage: /interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newBotFixture(t, ownerHandler(t, nil, ""))
			f.login(t)
			f.command(t, tt.command)

			texts := f.notifier.texts()
			require.NotEmpty(t, texts)
			assert.Contains(t, texts[len(texts)-1], tt.want)
		})
	}
}

func TestBot_IntervalRequiresLogin(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/interval 60")
	assert.Contains(t, f.notifier.texts()[0], "Not logged in")
}

func TestBot_Status(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, testOrders, "Dec 1 - Dec 15"))
	f.login(t)

	f.command(t, "/status")

	texts := f.notifier.texts()
	require.Len(t, texts, 2) // "Checking..." + one order
	assert.Contains(t, texts[1], "RN1")
	assert.Contains(t, texts[1], "Dec 1 - Dec 15")
	assert.Contains(t, f.notifier.last().ImageURL, "compositor")
}

func TestBot_VIN(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, testOrders, "Dec 1 - Dec 15"))
	f.login(t)

	f.command(t, "/vin")

	texts := f.notifier.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "XP7YGCEK5SB342365")
	assert.Contains(t, texts[0], "Berlin (2025)")
}

func TestBot_Options(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, testOrders, "Dec 1 - Dec 15"))
	f.login(t)

	f.command(t, "/options")

	texts := f.notifier.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "$MTY41")
	assert.Contains(t, texts[0], "Gran autonomía con tracción integral")
	assert.Contains(t, texts[0], "Blanco Perla Multicapas")
}

func TestBot_NoOrders(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, []tesla.Order{}, ""))
	f.login(t)

	f.command(t, "/vin")
	assert.Contains(t, f.notifier.texts()[0], "No orders found")
}

func TestBot_WatchLifecycle(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.login(t)

	f.command(t, "/watch add model=my price=45000 options=$PPSW")
	texts := f.notifier.texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Watch")
	assert.Equal(t, 1, f.sched.Jobs()[engine.JobInventory])

	sub, err := f.store.GetSubscriber(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, sub.Watches, 1)
	watchID := sub.Watches[0].ID

	f.command(t, "/watch list")
	assert.Contains(t, f.notifier.last().Text, watchID)

	f.command(t, "/watch del "+watchID)
	sub, err = f.store.GetSubscriber(context.Background(), "42")
	require.NoError(t, err)
	assert.Empty(t, sub.Watches)
	assert.Zero(t, f.sched.Jobs()[engine.JobInventory],
		"deleting the last watch cancels the job")
}

func TestBot_WatchValidation(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.login(t)

	f.command(t, "/watch add price=45000")
	assert.Contains(t, f.notifier.last().Text, "model is required")

	f.command(t, "/watch del nope")
	assert.Contains(t, f.notifier.last().Text, "No watch with id")

	f.command(t, "/watch")
	assert.Contains(t, f.notifier.last().Text, "Usage: /watch")
}

func TestBot_WatchRequiresLogin(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/watch add model=my")
	assert.Contains(t, f.notifier.texts()[0], "Not logged in")
}

func TestBot_Check(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.login(t)
	f.command(t, "/watch add model=my")

	f.command(t, "/check")

	found := false
	for _, text := range f.notifier.texts() {
		if strings.Contains(text, "Inventory Found") {
			found = true
		}
	}
	assert.True(t, found, "manual check should surface the match immediately")
}

func TestBot_UnknownCommand(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "/teleport")
	assert.Contains(t, f.notifier.texts()[0], "Unknown command")
}

func TestBot_IgnoresNonCommands(t *testing.T) {
	t.Parallel()

	f := newBotFixture(t, ownerHandler(t, nil, ""))
	f.command(t, "hello there")
	assert.Empty(t, f.notifier.texts())
}
