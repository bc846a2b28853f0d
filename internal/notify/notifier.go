// Package notify defines the notification interface and
// implementations for subscriber alert delivery.
package notify

import (
	"context"
)

// Message is one outbound notification. When ImageURL is set the
// backend attaches the render with Text as its caption, falling back
// to plain text if the image cannot be delivered.
type Message struct {
	ChatID   string
	Text     string
	ImageURL string
}

// Notifier delivers messages to subscribers.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
