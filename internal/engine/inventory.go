package engine

import (
	"context"
	"fmt"

	"github.com/XaviFortes/tesla-tracker/internal/inventory"
	"github.com/XaviFortes/tesla-tracker/internal/metrics"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// RunInventoryCycle checks all watches of one subscriber. Watches are
// isolated from each other: a failed fetch for one fingerprint logs
// and moves on, and never produces a false "no matches" alert.
func (eng *Engine) RunInventoryCycle(ctx context.Context, chatID string) error {
	metrics.InventoryCyclesTotal.Inc()

	sub, err := eng.store.GetSubscriber(ctx, chatID)
	if err != nil {
		return fmt.Errorf("loading subscriber %s: %w", chatID, err)
	}

	for i := range sub.Watches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w := &sub.Watches[i]
		if err := eng.checkWatch(ctx, chatID, w); err != nil {
			metrics.InventoryWatchErrorsTotal.Inc()
			eng.log.Error("watch check failed",
				"chat_id", chatID,
				"watch_id", w.ID,
				"error", err,
			)
		}
	}
	return nil
}

func (eng *Engine) checkWatch(
	ctx context.Context,
	chatID string,
	w *domain.Watch,
) error {
	results, err := eng.cache.Results(ctx, tesla.InventoryQuery{
		Model:     string(w.Model),
		Condition: string(w.Condition),
		Market:    w.Market,
		Trim:      w.Trim,
	})
	if err != nil {
		return err
	}

	matches := inventory.Match(results, *w)
	fresh, seen := inventory.Unseen(w.SeenVINs, matches)
	if len(fresh) == 0 {
		return nil
	}

	eng.log.Info("inventory matches found",
		"chat_id", chatID,
		"watch_id", w.ID,
		"fresh", len(fresh),
		"total_matches", len(matches),
	)

	for i := range fresh {
		msg := notify.Message{
			ChatID: chatID,
			Text:   FormatVehicleFound(&fresh[i]),
		}
		if err := eng.notifier.Send(ctx, msg); err != nil {
			eng.log.Error("inventory notification failed",
				"chat_id", chatID,
				"watch_id", w.ID,
				"vin", fresh[i].VIN,
				"error", err,
			)
		}
	}

	// Alerted VINs are recorded even when delivery partially failed,
	// so a flaky notifier cannot cause repeat alerts every cycle.
	if err := eng.store.UpdateWatchSeen(ctx, chatID, w.ID, seen); err != nil {
		return fmt.Errorf("persisting seen set: %w", err)
	}
	return nil
}
