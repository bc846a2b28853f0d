package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/XaviFortes/tesla-tracker/internal/bot"
	"github.com/XaviFortes/tesla-tracker/internal/config"
	"github.com/XaviFortes/tesla-tracker/internal/engine"
	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/ops"
	"github.com/XaviFortes/tesla-tracker/internal/store"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	"github.com/XaviFortes/tesla-tracker/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot, scheduler, and ops server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	exchanger := tesla.NewTokenExchanger(
		tesla.WithTokenURL(cfg.Tesla.TokenURL),
		tesla.WithClientID(cfg.Tesla.ClientID),
		tesla.WithTokenHTTPClient(&http.Client{Timeout: cfg.Tesla.Timeout}),
	)
	owner := tesla.NewOwnerClient(exchanger, st,
		tesla.WithOrdersURL(cfg.Tesla.OrdersURL),
		tesla.WithTasksURL(cfg.Tesla.TasksURL),
		tesla.WithAppVersion(cfg.Tesla.AppVersion),
		tesla.WithHTTPClient(&http.Client{Timeout: cfg.Tesla.Timeout}),
		tesla.WithLogger(log),
	)

	searcher, err := newInventoryClient(cfg, log)
	if err != nil {
		return err
	}
	cache := inventory.NewResultCache(searcher,
		inventory.WithTTL(cfg.Inventory.CacheTTL),
		inventory.WithCacheLogger(log),
	)

	notifier := notify.NewTelegramNotifier(cfg.Telegram.BotToken,
		notify.WithEndpoint(cfg.Telegram.APIEndpoint),
		notify.WithLogger(log),
	)

	eng := engine.NewEngine(st, owner, cache, notifier,
		engine.WithLogger(log),
	)
	sched := engine.NewScheduler(eng,
		engine.WithWarmup(cfg.Polling.WarmupDelay),
		engine.WithSchedulerLogger(log),
	)
	if err := sched.Restore(ctx, cfg.Polling.InventoryInterval); err != nil {
		return fmt.Errorf("restoring scheduled jobs: %w", err)
	}
	sched.Start()

	b := bot.New(cfg.Telegram.BotToken, st, owner, eng, sched, notifier,
		bot.WithAPIEndpoint(cfg.Telegram.APIEndpoint),
		bot.WithPollTimeout(cfg.Telegram.PollTimeout),
		bot.WithLogger(log),
		bot.WithInventoryInterval(cfg.Polling.InventoryInterval),
	)

	opsServer := ops.NewServer(st, ops.WithLogger(log))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 2)
	go func() {
		if err := opsServer.Start(addr); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()
	go func() {
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("bot: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("component failed", "error", runErr)
	}
	stop()

	// Let in-flight poll cycles finish before closing the store.
	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ops server shutdown failed", "error", err)
	}

	log.Info("stopped")
	return runErr
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return st, nil
	default:
		st, err := store.NewFileStore(cfg.Store.File.Path)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return st, nil
	}
}

func newInventoryClient(
	cfg *config.Config,
	log *slog.Logger,
) (*tesla.InventoryClient, error) {
	httpClient := &http.Client{Timeout: cfg.Inventory.Timeout}
	if cfg.Inventory.Proxy != "" {
		var err error
		httpClient, err = tesla.NewProxyTransport(cfg.Inventory.Proxy, cfg.Inventory.Timeout)
		if err != nil {
			return nil, fmt.Errorf("configuring inventory proxy: %w", err)
		}
	}

	return tesla.NewInventoryClient(
		tesla.WithInventoryURL(cfg.Inventory.URL),
		tesla.WithGeo(tesla.Geo{
			Lat: cfg.Inventory.Geo.Lat,
			Lng: cfg.Inventory.Geo.Lng,
			Zip: cfg.Inventory.Geo.Zip,
		}),
		tesla.WithRateLimit(cfg.Inventory.RateLimit.PerSecond, cfg.Inventory.RateLimit.Burst),
		tesla.WithInventoryHTTPClient(httpClient),
		tesla.WithInventoryLogger(log),
	), nil
}
