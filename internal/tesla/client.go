// Package tesla provides clients for the Tesla owner API, the SSO
// token endpoint, and the public inventory API, abstracted behind
// interfaces for testability.
package tesla

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

const (
	defaultOrdersURL = "https://owner-api.teslamotors.com/api/1/users/orders"
	defaultTasksURL  = "https://akamai-apigateway-vfx.tesla.com/tasks"

	defaultAppVersion = "4.35.1-2716"
)

// TokenPersister stores a rotated token pair for a subscriber. The
// owner client writes through it immediately after every refresh so a
// crash never strands a revoked refresh token on disk.
type TokenPersister interface {
	UpdateTokens(ctx context.Context, chatID string, tokens domain.TokenPair) error
}

// OwnerAPI is the surface the polling engine and bot consume.
type OwnerAPI interface {
	Session(chatID string, tokens domain.TokenPair) *Session
}

// OwnerClient calls the Tesla owner API on behalf of subscribers. It
// impersonates the official mobile app via the TeslaApp user agent
// headers.
type OwnerClient struct {
	exchanger  Exchanger
	persist    TokenPersister
	ordersURL  string
	tasksURL   string
	appVersion string
	client     *http.Client
	logger     *slog.Logger
}

// OwnerOption configures the OwnerClient.
type OwnerOption func(*OwnerClient)

// WithOrdersURL overrides the owner API orders endpoint.
func WithOrdersURL(u string) OwnerOption {
	return func(c *OwnerClient) {
		c.ordersURL = u
	}
}

// WithTasksURL overrides the order tasks gateway endpoint.
func WithTasksURL(u string) OwnerOption {
	return func(c *OwnerClient) {
		c.tasksURL = u
	}
}

// WithAppVersion overrides the impersonated mobile app version.
func WithAppVersion(v string) OwnerOption {
	return func(c *OwnerClient) {
		c.appVersion = v
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) OwnerOption {
	return func(c *OwnerClient) {
		c.client = hc
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) OwnerOption {
	return func(c *OwnerClient) {
		c.logger = l
	}
}

// NewOwnerClient creates an owner API client that refreshes through
// the given exchanger and persists rotated tokens through persist.
func NewOwnerClient(
	exchanger Exchanger,
	persist TokenPersister,
	opts ...OwnerOption,
) *OwnerClient {
	c := &OwnerClient{
		exchanger:  exchanger,
		persist:    persist,
		ordersURL:  defaultOrdersURL,
		tasksURL:   defaultTasksURL,
		appVersion: defaultAppVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session binds the client to one subscriber's credentials. Tokens
// rotated mid-session are carried forward to subsequent calls, so one
// refresh covers a whole polling cycle.
func (c *OwnerClient) Session(chatID string, tokens domain.TokenPair) *Session {
	return &Session{
		client: c,
		chatID: chatID,
		tokens: tokens,
	}
}

// Session is a per-subscriber view of the owner API. Safe for
// concurrent use.
type Session struct {
	client *OwnerClient
	chatID string

	mu     sync.Mutex
	tokens domain.TokenPair
}

// Tokens returns the current token pair, including any rotation that
// happened during this session.
func (s *Session) Tokens() domain.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

type ordersEnvelope struct {
	Response []Order `json:"response"`
}

// Orders lists the subscriber's vehicle orders.
func (s *Session) Orders(ctx context.Context) ([]Order, error) {
	body, err := s.get(ctx, s.client.ordersURL)
	if err != nil {
		return nil, err
	}

	var env ordersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing orders response: %w", err)
	}
	return env.Response, nil
}

// OrderDetail fetches the task breakdown for one order.
func (s *Session) OrderDetail(
	ctx context.Context,
	referenceNumber string,
) (*OrderDetail, error) {
	params := url.Values{
		"deviceLanguage":  {"en"},
		"deviceCountry":   {"US"},
		"referenceNumber": {referenceNumber},
		"appVersion":      {s.client.appVersion},
	}

	body, err := s.get(ctx, s.client.tasksURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var detail OrderDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing order detail response: %w", err)
	}
	return &detail, nil
}

// get performs an authenticated GET. The access token is used
// optimistically; a 401 triggers one refresh-and-retry, and a second
// 401 is terminal.
func (s *Session) get(ctx context.Context, u string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.AccessToken == "" {
		if err := s.refreshLocked(ctx); err != nil {
			return nil, &AuthError{Err: err}
		}
	}

	status, body, err := s.client.do(ctx, u, s.tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		s.client.logger.Info("access token rejected, refreshing",
			"chat_id", s.chatID,
		)
		if err := s.refreshLocked(ctx); err != nil {
			return nil, &AuthError{Err: err}
		}

		status, body, err = s.client.do(ctx, u, s.tokens.AccessToken)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &AuthError{
				Err: fmt.Errorf("request unauthorized after token refresh"),
			}
		}
	}

	if status < 200 || status >= 300 {
		metrics.OwnerAPICallsTotal.WithLabelValues("error").Inc()
		return nil, &UpstreamError{Status: status, Body: string(body)}
	}

	metrics.OwnerAPICallsTotal.WithLabelValues("ok").Inc()
	return body, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	pair, err := s.client.exchanger.Exchange(ctx, s.tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}

	s.tokens = pair
	if err := s.client.persist.UpdateTokens(ctx, s.chatID, pair); err != nil {
		return fmt.Errorf("persisting rotated tokens: %w", err)
	}
	return nil
}

func (c *OwnerClient) do(
	ctx context.Context,
	u, accessToken string,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	appUA := "TeslaApp/" + c.appVersion
	req.Header.Set("User-Agent", appUA)
	req.Header.Set("X-Tesla-User-Agent", appUA)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.OwnerAPICallsTotal.WithLabelValues("transport_error").Inc()
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, body, nil
}
