// Package bot implements the Telegram command surface: subscriber
// registration, order inspection commands, and watch management.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/engine"
	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/store"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

const helpText = "🤖 **Tesla Tracker Commands**\n\n" +
	"🔐 **Setup**\n" +
	"`/login <refresh_token>` - Authorize bot (revokes old tokens!)\n" +
	"`/logout` - Remove your data\n" +
	"`/interval <minutes>` - Set check frequency (default 30m)\n\n" +
	"🚘 **Inspect**\n" +
	"`/status` - Full report of all orders\n" +
	"`/vin` - Only VIN & factory info\n" +
	"`/options` - Decoded configuration codes\n" +
	"`/image` - Get vehicle render\n\n" +
	"🔎 **Inventory**\n" +
	"`/watch add model=my price=45000 options=$PPSW` - Add a watch\n" +
	"`/watch list` - Show watches\n" +
	"`/watch del <id>` - Remove one watch\n" +
	"`/watch clear` - Remove all watches\n" +
	"`/check` - Check inventory now\n\n" +
	"ℹ️ *Your refresh token is stored locally on this server.*"

// Bot runs the Telegram command loop.
type Bot struct {
	api       *apiClient
	store     store.Store
	owner     engine.OwnerSessions
	engine    *engine.Engine
	scheduler *engine.Scheduler
	notifier  notify.Notifier
	log       *slog.Logger
	nowFunc   func() time.Time

	inventoryInterval time.Duration
}

// Option configures the Bot.
type Option func(*Bot)

// WithAPIEndpoint overrides the Bot API endpoint.
func WithAPIEndpoint(e string) Option {
	return func(b *Bot) {
		b.api.endpoint = strings.TrimRight(e, "/")
	}
}

// WithPollTimeout sets the long-poll hold time.
func WithPollTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.api = newAPIClient(b.api.endpoint, b.api.token, d)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		b.log = l
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(b *Bot) {
		b.nowFunc = f
	}
}

// WithInventoryInterval sets the polling period used when a watch job
// is installed.
func WithInventoryInterval(d time.Duration) Option {
	return func(b *Bot) {
		b.inventoryInterval = d
	}
}

// New creates the bot.
func New(
	token string,
	s store.Store,
	owner engine.OwnerSessions,
	eng *engine.Engine,
	sched *engine.Scheduler,
	n notify.Notifier,
	opts ...Option,
) *Bot {
	b := &Bot{
		api:               newAPIClient("", token, 0),
		store:             s,
		owner:             owner,
		engine:            eng,
		scheduler:         sched,
		notifier:          n,
		log:               slog.Default(),
		nowFunc:           time.Now,
		inventoryInterval: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run long-polls for commands until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot command loop started")

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := b.api.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Error("polling updates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, u.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}

	// Commands may arrive as /status@BotName in group chats.
	command, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	b.log.Info("command received", "chat_id", chatID, "command", command)

	var err error
	switch command {
	case "/start", "/help":
		err = b.reply(ctx, chatID, helpText)
	case "/login":
		err = b.handleLogin(ctx, chatID, msg, args)
	case "/logout":
		err = b.handleLogout(ctx, chatID)
	case "/interval":
		err = b.handleInterval(ctx, chatID, args)
	case "/status":
		err = b.handleStatus(ctx, chatID)
	case "/vin":
		err = b.handleVIN(ctx, chatID)
	case "/options":
		err = b.handleOptions(ctx, chatID)
	case "/image":
		err = b.handleImage(ctx, chatID)
	case "/watch":
		err = b.handleWatch(ctx, chatID, args)
	case "/check":
		err = b.handleCheck(ctx, chatID)
	default:
		err = b.reply(ctx, chatID, "Unknown command. Try /help.")
	}

	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			if sendErr := b.reply(ctx, chatID, "❌ "+vErr.Msg); sendErr != nil {
				b.log.Error("reply failed", "chat_id", chatID, "error", sendErr)
			}
			return
		}
		b.log.Error("command failed",
			"chat_id", chatID,
			"command", command,
			"error", err,
		)
		if sendErr := b.reply(ctx, chatID, fmt.Sprintf("❌ Error: %v", err)); sendErr != nil {
			b.log.Error("reply failed", "chat_id", chatID, "error", sendErr)
		}
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text string) error {
	return b.notifier.Send(ctx, notify.Message{ChatID: chatID, Text: text})
}

func (b *Bot) handleLogin(
	ctx context.Context,
	chatID string,
	msg *Message,
	args []string,
) error {
	if len(args) != 1 {
		return validationErrorf(
			"Usage: /login <your_refresh_token>\nRun `tesla-tracker login` locally to generate one.",
		)
	}
	refreshToken := args[0]

	if err := b.reply(ctx, chatID, "🔐 Validating token with Tesla..."); err != nil {
		b.log.Error("reply failed", "chat_id", chatID, "error", err)
	}

	sub := &domain.Subscriber{
		ChatID:          chatID,
		Tokens:          domain.TokenPair{RefreshToken: refreshToken},
		IntervalMinutes: domain.DefaultIntervalMinutes,
	}
	if err := b.store.PutSubscriber(ctx, sub); err != nil {
		return fmt.Errorf("storing subscriber: %w", err)
	}

	// Exercise the token before accepting it.
	sess := b.owner.Session(chatID, sub.Tokens)
	orders, err := sess.Orders(ctx)
	if err != nil {
		if delErr := b.store.DeleteSubscriber(ctx, chatID); delErr != nil &&
			!errors.Is(delErr, store.ErrNotFound) {
			b.log.Error("login rollback failed", "chat_id", chatID, "error", delErr)
		}
		return validationErrorf("Login failed: %v", err)
	}

	b.scheduler.ScheduleOrders(chatID, sub.OrderInterval())

	// Scrub the pasted token. The bot may lack delete permissions.
	if err := b.api.deleteMessage(ctx, chatID, msg.MessageID); err != nil {
		b.log.Debug("could not delete login message", "chat_id", chatID, "error", err)
	}

	return b.reply(ctx, chatID, fmt.Sprintf(
		"✅ Success! Found %d orders.\nPolling started (%dm interval).",
		len(orders), domain.DefaultIntervalMinutes,
	))
}

func (b *Bot) handleLogout(ctx context.Context, chatID string) error {
	b.scheduler.Cancel(chatID)
	if err := b.store.DeleteSubscriber(ctx, chatID); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting subscriber: %w", err)
	}
	return b.reply(ctx, chatID, "👋 Logged out. Data removed.")
}

func (b *Bot) handleInterval(ctx context.Context, chatID string, args []string) error {
	if len(args) != 1 {
		return validationErrorf("Usage: /interval 60 (in minutes)")
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return validationErrorf("Usage: /interval 60 (in minutes)")
	}
	if minutes < domain.MinIntervalMinutes {
		return validationErrorf(
			"Minimum interval is %d minutes.", domain.MinIntervalMinutes,
		)
	}

	if err := b.store.UpdateInterval(ctx, chatID, minutes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationErrorf("Not logged in. Use /login first.")
		}
		return fmt.Errorf("updating interval: %w", err)
	}

	b.scheduler.ScheduleOrders(chatID, time.Duration(minutes)*time.Minute)
	return b.reply(ctx, chatID, fmt.Sprintf(
		"✅ Polling interval set to %d minutes.", minutes,
	))
}

// forEachOrder loads the subscriber's orders and details and applies
// fn to each.
func (b *Bot) forEachOrder(
	ctx context.Context,
	chatID string,
	fn func(order *tesla.Order, detail *tesla.OrderDetail) error,
) error {
	sub, err := b.store.GetSubscriber(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationErrorf("Not logged in. Use /login first.")
		}
		return fmt.Errorf("loading subscriber: %w", err)
	}

	sess := b.owner.Session(chatID, sub.Tokens)
	orders, err := sess.Orders(ctx)
	if err != nil {
		return fmt.Errorf("fetching orders: %w", err)
	}
	if len(orders) == 0 {
		return b.reply(ctx, chatID, "No orders found.")
	}

	for i := range orders {
		detail, err := sess.OrderDetail(ctx, orders[i].ReferenceNumber)
		if err != nil {
			return fmt.Errorf(
				"fetching order %s: %w", orders[i].ReferenceNumber, err,
			)
		}
		if err := fn(&orders[i], detail); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleStatus(ctx context.Context, chatID string) error {
	if err := b.reply(ctx, chatID, "🔄 Checking..."); err != nil {
		b.log.Error("reply failed", "chat_id", chatID, "error", err)
	}
	return b.forEachOrder(ctx, chatID, func(order *tesla.Order, detail *tesla.OrderDetail) error {
		return b.notifier.Send(ctx, notify.Message{
			ChatID:   chatID,
			Text:     engine.FormatOrderUpdate(order, detail),
			ImageURL: tesla.CompositorURL(order.OptionCodeList, order.ModelCode),
		})
	})
}

func (b *Bot) handleVIN(ctx context.Context, chatID string) error {
	return b.forEachOrder(ctx, chatID, func(order *tesla.Order, _ *tesla.OrderDetail) error {
		vin := order.VIN
		if vin == "" {
			vin = "None"
		}
		intel, ok := tesla.DecodeVIN(order.VIN)
		if !ok {
			intel = "Unknown"
		}
		return b.reply(ctx, chatID, fmt.Sprintf(
			"🚗 **%s**\nVIN: `%s`\nFactory: %s",
			order.ReferenceNumber, vin, intel,
		))
	})
}

func (b *Bot) handleOptions(ctx context.Context, chatID string) error {
	return b.forEachOrder(ctx, chatID, func(order *tesla.Order, _ *tesla.OrderDetail) error {
		model := modelFromOrderCode(order.ModelCode)

		var decoded []string
		for _, code := range order.OptionCodeList {
			if name, ok := inventory.OptionName(model, code); ok {
				decoded = append(decoded, fmt.Sprintf("`%s`: %s", code, name))
			}
		}
		desc := strings.Join(decoded, "\n")
		if desc == "" {
			desc = "No known options."
		}
		return b.reply(ctx, chatID, fmt.Sprintf(
			"🧬 **%s Configuration**\n%s", order.ReferenceNumber, desc,
		))
	})
}

func (b *Bot) handleImage(ctx context.Context, chatID string) error {
	return b.forEachOrder(ctx, chatID, func(order *tesla.Order, _ *tesla.OrderDetail) error {
		return b.notifier.Send(ctx, notify.Message{
			ChatID:   chatID,
			Text:     fmt.Sprintf("📸 %s", order.ReferenceNumber),
			ImageURL: tesla.CompositorURL(order.OptionCodeList, order.ModelCode),
		})
	})
}

func (b *Bot) handleWatch(ctx context.Context, chatID string, args []string) error {
	if len(args) == 0 {
		return validationErrorf(
			"Usage: /watch add|list|del|clear",
		)
	}

	sub, err := b.store.GetSubscriber(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationErrorf("Not logged in. Use /login first.")
		}
		return fmt.Errorf("loading subscriber: %w", err)
	}

	switch args[0] {
	case "add":
		w, err := parseWatchSpec(args[1:], b.nowFunc())
		if err != nil {
			return err
		}
		if err := b.store.AddWatch(ctx, chatID, w); err != nil {
			return fmt.Errorf("storing watch: %w", err)
		}
		b.scheduler.ScheduleInventory(chatID, b.inventoryInterval)
		return b.reply(ctx, chatID, fmt.Sprintf(
			"✅ Watch `%s` added. Checking every %s.",
			w.ID, b.inventoryInterval,
		))

	case "list":
		if len(sub.Watches) == 0 {
			return b.reply(ctx, chatID, "No watches. Add one with /watch add model=my")
		}
		lines := make([]string, 0, len(sub.Watches))
		for i := range sub.Watches {
			lines = append(lines, describeWatch(&sub.Watches[i]))
		}
		return b.reply(ctx, chatID,
			"🔎 **Watches**\n"+strings.Join(lines, "\n"),
		)

	case "del":
		if len(args) != 2 {
			return validationErrorf("Usage: /watch del <id>")
		}
		if err := b.store.DeleteWatch(ctx, chatID, args[1]); err != nil {
			if errors.Is(err, store.ErrWatchNotFound) {
				return validationErrorf("No watch with id `%s`.", args[1])
			}
			return fmt.Errorf("deleting watch: %w", err)
		}
		if len(sub.Watches) == 1 {
			b.scheduler.CancelInventory(chatID)
		}
		return b.reply(ctx, chatID, fmt.Sprintf("✅ Watch `%s` removed.", args[1]))

	case "clear":
		if err := b.store.ClearWatches(ctx, chatID); err != nil {
			return fmt.Errorf("clearing watches: %w", err)
		}
		b.scheduler.CancelInventory(chatID)
		return b.reply(ctx, chatID, "✅ All watches removed.")

	default:
		return validationErrorf("Usage: /watch add|list|del|clear")
	}
}

func (b *Bot) handleCheck(ctx context.Context, chatID string) error {
	if _, err := b.store.GetSubscriber(ctx, chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationErrorf("Not logged in. Use /login first.")
		}
		return fmt.Errorf("loading subscriber: %w", err)
	}

	if err := b.reply(ctx, chatID, "🔄 Checking inventory..."); err != nil {
		b.log.Error("reply failed", "chat_id", chatID, "error", err)
	}
	if err := b.engine.RunInventoryCycle(ctx, chatID); err != nil {
		return fmt.Errorf("inventory check: %w", err)
	}
	return b.reply(ctx, chatID, "✅ Done. New finds (if any) were sent above.")
}

// modelFromOrderCode maps an owner API model code like "$MDLY" onto
// the short model names the option catalog is keyed by.
func modelFromOrderCode(code string) domain.ModelCode {
	lower := strings.ToLower(code)
	switch {
	case strings.Contains(lower, "mdl3"), strings.Contains(lower, "model3"):
		return domain.Model3
	case strings.Contains(lower, "mdls"), strings.Contains(lower, "models"):
		return domain.ModelS
	case strings.Contains(lower, "mdlx"), strings.Contains(lower, "modelx"):
		return domain.ModelX
	default:
		return domain.ModelY
	}
}
