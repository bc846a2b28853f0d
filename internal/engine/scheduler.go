package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
)

// JobClass distinguishes the two periodic jobs a subscriber can have.
type JobClass string

const (
	JobOrders    JobClass = "orders"
	JobInventory JobClass = "inventory"
)

const defaultWarmup = 10 * time.Second

type jobKey struct {
	chatID string
	class  JobClass
}

// Scheduler owns the per-subscriber polling timers. Scheduling is
// idempotent: scheduling a job that already exists replaces it, so an
// interval change never leaves two timers running for the same
// subscriber.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
	warmup time.Duration

	mu      sync.Mutex
	entries map[jobKey]cron.EntryID
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithWarmup overrides the delay before a newly scheduled job first
// fires.
func WithWarmup(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.warmup = d
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = l
	}
}

// NewScheduler creates a scheduler running jobs through the given
// engine.
func NewScheduler(eng *Engine, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		engine:  eng,
		log:     slog.Default(),
		warmup:  defaultWarmup,
		entries: make(map[jobKey]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to
// finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// ScheduleOrders installs (or replaces) the order polling job for a
// subscriber.
func (s *Scheduler) ScheduleOrders(chatID string, interval time.Duration) {
	s.schedule(jobKey{chatID, JobOrders}, interval, func(ctx context.Context) error {
		return s.engine.RunOrderCycle(ctx, chatID)
	})
}

// ScheduleInventory installs (or replaces) the inventory watch job for
// a subscriber.
func (s *Scheduler) ScheduleInventory(chatID string, interval time.Duration) {
	s.schedule(jobKey{chatID, JobInventory}, interval, func(ctx context.Context) error {
		return s.engine.RunInventoryCycle(ctx, chatID)
	})
}

// Cancel removes all jobs for a subscriber. Unknown subscribers are a
// no-op.
func (s *Scheduler) Cancel(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, class := range []JobClass{JobOrders, JobInventory} {
		key := jobKey{chatID, class}
		if id, ok := s.entries[key]; ok {
			s.cron.Remove(id)
			delete(s.entries, key)
			metrics.ScheduledJobs.WithLabelValues(string(class)).Dec()
			s.log.Info("job cancelled", "chat_id", chatID, "class", class)
		}
	}
}

// CancelInventory removes only the inventory job for a subscriber,
// used when their last watch is deleted.
func (s *Scheduler) CancelInventory(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobKey{chatID, JobInventory}
	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		delete(s.entries, key)
		metrics.ScheduledJobs.WithLabelValues(string(JobInventory)).Dec()
		s.log.Info("job cancelled", "chat_id", chatID, "class", JobInventory)
	}
}

// Jobs returns the number of installed jobs per class.
func (s *Scheduler) Jobs() map[JobClass]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[JobClass]int)
	for key := range s.entries {
		counts[key.class]++
	}
	return counts
}

// Restore re-installs jobs for every persisted subscriber. Called once
// at startup; the warm-up delay both spreads the initial burst and
// gives the ops surface time to come up first.
func (s *Scheduler) Restore(ctx context.Context, inventoryInterval time.Duration) error {
	subs, err := s.engine.store.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("listing subscribers: %w", err)
	}

	for _, sub := range subs {
		s.ScheduleOrders(sub.ChatID, sub.OrderInterval())
		if len(sub.Watches) > 0 {
			s.ScheduleInventory(sub.ChatID, inventoryInterval)
		}
	}

	s.log.Info("jobs restored", "subscribers", len(subs))
	return nil
}

func (s *Scheduler) schedule(
	key jobKey,
	interval time.Duration,
	run func(context.Context) error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		metrics.ScheduledJobs.WithLabelValues(string(key.class)).Dec()
	}

	job := func() {
		if err := run(context.Background()); err != nil {
			s.log.Error("scheduled job failed",
				"chat_id", key.chatID,
				"class", key.class,
				"error", err,
			)
		}
	}

	id := s.cron.Schedule(
		&warmupSchedule{warmup: s.warmup, every: interval},
		cron.FuncJob(job),
	)
	s.entries[key] = id
	metrics.ScheduledJobs.WithLabelValues(string(key.class)).Inc()

	s.log.Info("job scheduled",
		"chat_id", key.chatID,
		"class", key.class,
		"interval", interval,
	)
}

// warmupSchedule fires once after the warm-up delay, then settles into
// a fixed period. cron calls Next from a single goroutine, so the
// fired flag needs no locking.
type warmupSchedule struct {
	warmup time.Duration
	every  time.Duration
	fired  bool
}

// Next implements cron.Schedule.
func (w *warmupSchedule) Next(t time.Time) time.Time {
	if !w.fired {
		w.fired = true
		return t.Add(w.warmup)
	}
	return t.Add(w.every)
}
