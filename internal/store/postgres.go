package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
// One row per subscriber; the order snapshot and watch list live in JSONB
// columns. Watch mutations run read-modify-write inside a transaction with
// SELECT ... FOR UPDATE, which gives the same lost-update protection the
// FileStore gets from its mutex.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

const querySelectSubscriber = `
SELECT chat_id, access_token, refresh_token, interval_minutes,
       orders, watches, created_at, updated_at
FROM subscribers
`

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var (
		sub     domain.Subscriber
		orders  []byte
		watches []byte
	)
	err := row.Scan(
		&sub.ChatID,
		&sub.Tokens.AccessToken,
		&sub.Tokens.RefreshToken,
		&sub.IntervalMinutes,
		&orders,
		&watches,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning subscriber: %w", err)
	}

	if len(orders) > 0 {
		if err := json.Unmarshal(orders, &sub.Orders); err != nil {
			return nil, fmt.Errorf("decoding order snapshot: %w", err)
		}
	}
	if len(watches) > 0 {
		if err := json.Unmarshal(watches, &sub.Watches); err != nil {
			return nil, fmt.Errorf("decoding watches: %w", err)
		}
	}
	return &sub, nil
}

// GetSubscriber retrieves one subscriber by chat id.
func (s *PostgresStore) GetSubscriber(ctx context.Context, chatID string) (*domain.Subscriber, error) {
	row := s.pool.QueryRow(ctx, querySelectSubscriber+"WHERE chat_id = $1", chatID)
	return scanSubscriber(row)
}

// ListSubscribers retrieves all subscribers.
func (s *PostgresStore) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := s.pool.Query(ctx, querySelectSubscriber+"ORDER BY chat_id")
	if err != nil {
		return nil, fmt.Errorf("querying subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// PutSubscriber creates the record, or overwrites credentials and interval
// on an existing one. Snapshot and watches are untouched on conflict.
func (s *PostgresStore) PutSubscriber(ctx context.Context, sub *domain.Subscriber) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscribers (chat_id, access_token, refresh_token, interval_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			access_token     = EXCLUDED.access_token,
			refresh_token    = EXCLUDED.refresh_token,
			interval_minutes = EXCLUDED.interval_minutes,
			updated_at       = now()
	`, sub.ChatID, sub.Tokens.AccessToken, sub.Tokens.RefreshToken, sub.IntervalMinutes)
	if err != nil {
		return fmt.Errorf("upserting subscriber: %w", err)
	}
	return nil
}

func (s *PostgresStore) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTokens replaces the subscriber's token pair.
func (s *PostgresStore) UpdateTokens(ctx context.Context, chatID string, tokens domain.TokenPair) error {
	err := s.execOne(ctx, `
		UPDATE subscribers
		SET access_token = $2, refresh_token = $3, updated_at = now()
		WHERE chat_id = $1
	`, chatID, tokens.AccessToken, tokens.RefreshToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating tokens: %w", err)
	}
	return err
}

// UpdateInterval sets the order polling period in minutes.
func (s *PostgresStore) UpdateInterval(ctx context.Context, chatID string, minutes int) error {
	err := s.execOne(ctx, `
		UPDATE subscribers
		SET interval_minutes = $2, updated_at = now()
		WHERE chat_id = $1
	`, chatID, minutes)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating interval: %w", err)
	}
	return err
}

// UpdateOrders replaces the order snapshot wholesale.
func (s *PostgresStore) UpdateOrders(
	ctx context.Context,
	chatID string,
	orders map[string]domain.OrderState,
) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encoding order snapshot: %w", err)
	}
	err = s.execOne(ctx, `
		UPDATE subscribers
		SET orders = $2, updated_at = now()
		WHERE chat_id = $1
	`, chatID, data)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating order snapshot: %w", err)
	}
	return err
}

// DeleteSubscriber removes the record and everything it owns.
func (s *PostgresStore) DeleteSubscriber(ctx context.Context, chatID string) error {
	err := s.execOne(ctx, `DELETE FROM subscribers WHERE chat_id = $1`, chatID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting subscriber: %w", err)
	}
	return err
}

// mutateWatches applies fn to the watch list inside a row-locked transaction.
func (s *PostgresStore) mutateWatches(
	ctx context.Context,
	chatID string,
	fn func(watches []domain.Watch) ([]domain.Watch, error),
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // rollback after commit is a no-op

	var data []byte
	err = tx.QueryRow(ctx,
		`SELECT watches FROM subscribers WHERE chat_id = $1 FOR UPDATE`, chatID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking subscriber row: %w", err)
	}

	var watches []domain.Watch
	if len(data) > 0 {
		if err := json.Unmarshal(data, &watches); err != nil {
			return fmt.Errorf("decoding watches: %w", err)
		}
	}

	watches, err = fn(watches)
	if err != nil {
		return err
	}

	updated, err := json.Marshal(watches)
	if err != nil {
		return fmt.Errorf("encoding watches: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE subscribers SET watches = $2, updated_at = now() WHERE chat_id = $1
	`, chatID, updated); err != nil {
		return fmt.Errorf("writing watches: %w", err)
	}

	return tx.Commit(ctx)
}

// AddWatch appends a watch to the subscriber.
func (s *PostgresStore) AddWatch(ctx context.Context, chatID string, w domain.Watch) error {
	return s.mutateWatches(ctx, chatID, func(watches []domain.Watch) ([]domain.Watch, error) {
		return append(watches, w), nil
	})
}

// UpdateWatch replaces the watch with the same id.
func (s *PostgresStore) UpdateWatch(ctx context.Context, chatID string, w domain.Watch) error {
	return s.mutateWatches(ctx, chatID, func(watches []domain.Watch) ([]domain.Watch, error) {
		for i := range watches {
			if watches[i].ID == w.ID {
				watches[i] = w
				return watches, nil
			}
		}
		return nil, ErrWatchNotFound
	})
}

// DeleteWatch removes the watch with the given id.
func (s *PostgresStore) DeleteWatch(ctx context.Context, chatID, watchID string) error {
	return s.mutateWatches(ctx, chatID, func(watches []domain.Watch) ([]domain.Watch, error) {
		for i := range watches {
			if watches[i].ID == watchID {
				return append(watches[:i], watches[i+1:]...), nil
			}
		}
		return nil, ErrWatchNotFound
	})
}

// ClearWatches removes all watches for the subscriber.
func (s *PostgresStore) ClearWatches(ctx context.Context, chatID string) error {
	return s.mutateWatches(ctx, chatID, func([]domain.Watch) ([]domain.Watch, error) {
		return nil, nil
	})
}

// UpdateWatchSeen replaces the seen-VIN ledger for one watch.
func (s *PostgresStore) UpdateWatchSeen(
	ctx context.Context,
	chatID, watchID string,
	seen map[string]bool,
) error {
	return s.mutateWatches(ctx, chatID, func(watches []domain.Watch) ([]domain.Watch, error) {
		for i := range watches {
			if watches[i].ID == watchID {
				watches[i].SeenVINs = seen
				return watches, nil
			}
		}
		return nil, ErrWatchNotFound
	})
}
