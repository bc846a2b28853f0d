package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
	"github.com/XaviFortes/tesla-tracker/internal/notify"
	"github.com/XaviFortes/tesla-tracker/internal/tesla"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// RunOrderCycle polls all orders for one subscriber, notifies about
// new or changed ones, and replaces the persisted snapshot. The cycle
// is all-or-nothing: if any order fetch fails the old snapshot is kept
// untouched so the next cycle re-diffs against known-good state.
func (eng *Engine) RunOrderCycle(ctx context.Context, chatID string) error {
	start := time.Now()
	metrics.OrderCyclesTotal.Inc()
	defer func() {
		metrics.OrderCycleDuration.Observe(time.Since(start).Seconds())
	}()

	sub, err := eng.store.GetSubscriber(ctx, chatID)
	if err != nil {
		metrics.OrderCycleErrorsTotal.Inc()
		return fmt.Errorf("loading subscriber %s: %w", chatID, err)
	}

	sess := eng.owner.Session(chatID, sub.Tokens)

	orders, err := sess.Orders(ctx)
	if err != nil {
		return eng.cycleFailed(ctx, chatID, err)
	}

	current := make(map[string]domain.OrderState, len(orders))
	type change struct {
		order  tesla.Order
		detail *tesla.OrderDetail
		kind   string
	}
	var changes []change

	for i, order := range orders {
		if i > 0 && eng.staggerOffset > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(eng.staggerOffset):
			}
		}

		detail, err := sess.OrderDetail(ctx, order.ReferenceNumber)
		if err != nil {
			return eng.cycleFailed(ctx, chatID, err)
		}

		state := orderState(order, detail)
		current[order.ReferenceNumber] = state

		prev, known := sub.Orders[order.ReferenceNumber]
		switch {
		case !known:
			changes = append(changes, change{order, detail, "new"})
		case prev.VIN != state.VIN || prev.DeliveryWindow != state.DeliveryWindow:
			changes = append(changes, change{order, detail, "changed"})
		}
	}

	for _, ch := range changes {
		eng.log.Info("order update",
			"chat_id", chatID,
			"reference", ch.order.ReferenceNumber,
			"kind", ch.kind,
		)
		msg := notify.Message{
			ChatID:   chatID,
			Text:     FormatOrderUpdate(&ch.order, ch.detail),
			ImageURL: tesla.CompositorURL(ch.order.OptionCodeList, ch.order.ModelCode),
		}
		if err := eng.notifier.Send(ctx, msg); err != nil {
			eng.log.Error("order notification failed",
				"chat_id", chatID,
				"reference", ch.order.ReferenceNumber,
				"error", err,
			)
		}
	}

	if err := eng.store.UpdateOrders(ctx, chatID, current); err != nil {
		metrics.OrderCycleErrorsTotal.Inc()
		return fmt.Errorf("persisting order snapshot for %s: %w", chatID, err)
	}
	return nil
}

// cycleFailed records a failed cycle. Auth failures additionally tell
// the subscriber to log in again, since no amount of retrying will
// recover a revoked refresh token.
func (eng *Engine) cycleFailed(ctx context.Context, chatID string, err error) error {
	metrics.OrderCycleErrorsTotal.Inc()

	var authErr *tesla.AuthError
	if errors.As(err, &authErr) {
		eng.log.Warn("subscriber credentials expired", "chat_id", chatID)
		notifyErr := eng.notifier.Send(ctx, notify.Message{
			ChatID: chatID,
			Text:   "❌ Tesla session expired and could not be refreshed. Please /login again.",
		})
		if notifyErr != nil {
			eng.log.Error("auth failure notification failed",
				"chat_id", chatID,
				"error", notifyErr,
			)
		}
		return fmt.Errorf("order cycle for %s: %w", chatID, err)
	}

	return fmt.Errorf("order cycle for %s: %w", chatID, err)
}

func orderState(order tesla.Order, detail *tesla.OrderDetail) domain.OrderState {
	summary, _ := json.Marshal(order)     //nolint:errcheck // struct marshal cannot fail
	detailJSON, _ := json.Marshal(detail) //nolint:errcheck // struct marshal cannot fail
	return domain.OrderState{
		Summary:        summary,
		Detail:         detailJSON,
		VIN:            order.VIN,
		DeliveryWindow: detail.DeliveryWindow(),
	}
}
