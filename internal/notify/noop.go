package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded messages. It
// is used in dry runs and tests where no bot token is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a
// log line.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Send logs and discards a message.
func (n *NoOpNotifier) Send(_ context.Context, msg Message) error {
	n.log.Debug("notification discarded (no backend configured)",
		"chat_id", msg.ChatID,
		"bytes", len(msg.Text),
	)
	return nil
}
