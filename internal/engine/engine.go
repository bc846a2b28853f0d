// Package engine runs the per-subscriber polling cycles: order status
// diffing against the owner API and inventory watching against the
// public inventory API.
package engine

import (
	"log/slog"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/store"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// OwnerSessions opens per-subscriber owner API sessions. Satisfied by
// *tesla.OwnerClient.
type OwnerSessions interface {
	Session(chatID string, tokens domain.TokenPair) *tesla.Session
}

// Engine orchestrates polling, matching, and notification for all
// subscribers.
type Engine struct {
	store    store.Store
	owner    OwnerSessions
	cache    *inventory.ResultCache
	notifier notify.Notifier
	log      *slog.Logger

	staggerOffset time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStaggerOffset sets the delay between processing consecutive
// orders of one subscriber, to avoid bursts against the tasks gateway.
func WithStaggerOffset(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.staggerOffset = d
	}
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	s store.Store,
	owner OwnerSessions,
	cache *inventory.ResultCache,
	n notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		store:    s,
		owner:    owner,
		cache:    cache,
		notifier: n,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}
