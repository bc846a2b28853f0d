// Package store defines the datastore abstraction for tesla-tracker.
// All business logic depends on the Store interface, never on concrete
// implementations. Two backends exist: a single-file JSON store and a
// PostgreSQL store.
package store

import (
	"context"
	"errors"

	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// ErrNotFound is returned when a subscriber does not exist.
var ErrNotFound = errors.New("subscriber not found")

// ErrWatchNotFound is returned when a watch id does not exist for a subscriber.
var ErrWatchNotFound = errors.New("watch not found")

// Store defines all data access operations for tesla-tracker.
//
// Implementations must serialize writes so that concurrent updates for the
// same subscriber (the order job and the inventory job may overlap) never
// lose fields, and must persist durably on every mutation.
type Store interface {
	// Subscribers
	GetSubscriber(ctx context.Context, chatID string) (*domain.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	// PutSubscriber creates the record, or overwrites credentials and
	// interval on an existing one. Order snapshot and watches are preserved.
	PutSubscriber(ctx context.Context, sub *domain.Subscriber) error
	UpdateTokens(ctx context.Context, chatID string, tokens domain.TokenPair) error
	UpdateInterval(ctx context.Context, chatID string, minutes int) error
	// UpdateOrders replaces the order snapshot wholesale.
	UpdateOrders(ctx context.Context, chatID string, orders map[string]domain.OrderState) error
	DeleteSubscriber(ctx context.Context, chatID string) error

	// Watches
	AddWatch(ctx context.Context, chatID string, w domain.Watch) error
	UpdateWatch(ctx context.Context, chatID string, w domain.Watch) error
	DeleteWatch(ctx context.Context, chatID, watchID string) error
	ClearWatches(ctx context.Context, chatID string) error
	UpdateWatchSeen(ctx context.Context, chatID, watchID string, seen map[string]bool) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
