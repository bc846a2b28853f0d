package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
)

const defaultAPIEndpoint = "https://api.telegram.org"

// TelegramNotifier implements Notifier via the Telegram Bot API.
// Messages with an image are sent as photos with a Markdown caption;
// if Telegram rejects the photo (expired compositor URL, oversized
// render) the text is re-sent as a plain message so the alert is never
// lost.
type TelegramNotifier struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// TelegramOption configures a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithEndpoint overrides the Bot API endpoint.
func WithEndpoint(e string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.endpoint = strings.TrimRight(e, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramNotifier) {
		t.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TelegramOption {
	return func(t *TelegramNotifier) {
		t.logger = l
	}
}

// NewTelegramNotifier creates a notifier for the given bot token.
func NewTelegramNotifier(token string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		endpoint: defaultAPIEndpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send delivers one message, preferring sendPhoto when an image URL is
// present.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if msg.ImageURL != "" {
		err := t.call(ctx, "sendPhoto", url.Values{
			"chat_id":    {msg.ChatID},
			"photo":      {msg.ImageURL},
			"caption":    {msg.Text},
			"parse_mode": {"Markdown"},
		})
		if err == nil {
			metrics.NotificationsSentTotal.Inc()
			return nil
		}
		t.logger.Warn("photo delivery failed, falling back to text",
			"chat_id", msg.ChatID,
			"error", err,
		)
	}

	err := t.call(ctx, "sendMessage", url.Values{
		"chat_id":    {msg.ChatID},
		"text":       {msg.Text},
		"parse_mode": {"Markdown"},
	})
	if err != nil {
		metrics.NotificationFailuresTotal.Inc()
		return fmt.Errorf("sending telegram message: %w", err)
	}
	metrics.NotificationsSentTotal.Inc()
	return nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) call(
	ctx context.Context,
	method string,
	params url.Values,
) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.endpoint, t.token, method)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf(
			"%s failed (status %d): %s",
			method, resp.StatusCode, string(body),
		)
	}
	if !api.OK {
		return fmt.Errorf(
			"%s rejected (status %d): %s",
			method, resp.StatusCode, api.Description,
		)
	}
	return nil
}
