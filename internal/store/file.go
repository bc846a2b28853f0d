package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// FileStore implements Store backed by a single JSON document on disk.
// All operations serialize through one mutex; every mutation rewrites the
// whole file atomically (write temp, then rename), so a crash mid-write
// never corrupts existing data.
type FileStore struct {
	path string

	mu      sync.Mutex
	subs    map[string]*domain.Subscriber
	nowFunc func() time.Time
}

// FileOption configures the FileStore.
type FileOption func(*FileStore)

// WithFileNowFunc overrides the time function for testing.
func WithFileNowFunc(f func() time.Time) FileOption {
	return func(s *FileStore) {
		s.nowFunc = f
	}
}

type fileDocument struct {
	Subscribers map[string]*domain.Subscriber `json:"subscribers"`
}

// NewFileStore opens (or creates) the JSON store at path.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		subs:    make(map[string]*domain.Subscriber),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run, nothing persisted yet.
	case err != nil:
		return nil, fmt.Errorf("reading store file: %w", err)
	default:
		var doc fileDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing store file: %w", err)
		}
		if doc.Subscribers != nil {
			s.subs = doc.Subscribers
		}
	}

	return s, nil
}

// persistLocked rewrites the backing file. Callers must hold s.mu.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(fileDocument{Subscribers: s.subs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// GetSubscriber returns a deep copy of the subscriber record.
func (s *FileStore) GetSubscriber(_ context.Context, chatID string) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySubscriber(sub), nil
}

// ListSubscribers returns copies of all subscriber records.
func (s *FileStore) ListSubscribers(_ context.Context) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *copySubscriber(sub))
	}
	return out, nil
}

// PutSubscriber creates the record, or overwrites credentials and interval
// on an existing one.
func (s *FileStore) PutSubscriber(_ context.Context, sub *domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	existing, ok := s.subs[sub.ChatID]
	if !ok {
		rec := copySubscriber(sub)
		rec.CreatedAt = now
		rec.UpdatedAt = now
		s.subs[sub.ChatID] = rec
		return s.persistLocked()
	}

	existing.Tokens = sub.Tokens
	existing.IntervalMinutes = sub.IntervalMinutes
	existing.UpdatedAt = now
	return s.persistLocked()
}

// UpdateTokens replaces the subscriber's token pair.
func (s *FileStore) UpdateTokens(_ context.Context, chatID string, tokens domain.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	sub.Tokens = tokens
	sub.UpdatedAt = s.nowFunc()
	return s.persistLocked()
}

// UpdateInterval sets the order polling period in minutes.
func (s *FileStore) UpdateInterval(_ context.Context, chatID string, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	sub.IntervalMinutes = minutes
	sub.UpdatedAt = s.nowFunc()
	return s.persistLocked()
}

// UpdateOrders replaces the order snapshot wholesale.
func (s *FileStore) UpdateOrders(
	_ context.Context,
	chatID string,
	orders map[string]domain.OrderState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	sub.Orders = copyOrders(orders)
	sub.UpdatedAt = s.nowFunc()
	return s.persistLocked()
}

// DeleteSubscriber removes the record and everything it owns.
func (s *FileStore) DeleteSubscriber(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[chatID]; !ok {
		return ErrNotFound
	}
	delete(s.subs, chatID)
	return s.persistLocked()
}

// AddWatch appends a watch to the subscriber.
func (s *FileStore) AddWatch(_ context.Context, chatID string, w domain.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	sub.Watches = append(sub.Watches, w)
	sub.UpdatedAt = s.nowFunc()
	return s.persistLocked()
}

// UpdateWatch replaces the watch with the same id.
func (s *FileStore) UpdateWatch(_ context.Context, chatID string, w domain.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	for i := range sub.Watches {
		if sub.Watches[i].ID == w.ID {
			sub.Watches[i] = w
			sub.UpdatedAt = s.nowFunc()
			return s.persistLocked()
		}
	}
	return ErrWatchNotFound
}

// DeleteWatch removes the watch with the given id.
func (s *FileStore) DeleteWatch(_ context.Context, chatID, watchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	for i := range sub.Watches {
		if sub.Watches[i].ID == watchID {
			sub.Watches = append(sub.Watches[:i], sub.Watches[i+1:]...)
			sub.UpdatedAt = s.nowFunc()
			return s.persistLocked()
		}
	}
	return ErrWatchNotFound
}

// ClearWatches removes all watches for the subscriber.
func (s *FileStore) ClearWatches(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	sub.Watches = nil
	sub.UpdatedAt = s.nowFunc()
	return s.persistLocked()
}

// UpdateWatchSeen replaces the seen-VIN ledger for one watch.
func (s *FileStore) UpdateWatchSeen(
	_ context.Context,
	chatID, watchID string,
	seen map[string]bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return ErrNotFound
	}
	for i := range sub.Watches {
		if sub.Watches[i].ID == watchID {
			sub.Watches[i].SeenVINs = copySeen(seen)
			sub.UpdatedAt = s.nowFunc()
			return s.persistLocked()
		}
	}
	return ErrWatchNotFound
}

// Ping reports whether the backing directory is writable.
func (s *FileStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

// copySubscriber deep-copies a record so callers can't mutate cached state.
func copySubscriber(sub *domain.Subscriber) *domain.Subscriber {
	out := *sub
	out.Orders = copyOrders(sub.Orders)
	if sub.Watches != nil {
		out.Watches = make([]domain.Watch, len(sub.Watches))
		for i, w := range sub.Watches {
			out.Watches[i] = w
			out.Watches[i].SeenVINs = copySeen(w.SeenVINs)
			out.Watches[i].OptionCodes = append([]string(nil), w.OptionCodes...)
		}
	}
	return &out
}

func copyOrders(orders map[string]domain.OrderState) map[string]domain.OrderState {
	if orders == nil {
		return nil
	}
	out := make(map[string]domain.OrderState, len(orders))
	for k, v := range orders {
		out[k] = v
	}
	return out
}

func copySeen(seen map[string]bool) map[string]bool {
	if seen == nil {
		return nil
	}
	out := make(map[string]bool, len(seen))
	for k, v := range seen {
		out[k] = v
	}
	return out
}
