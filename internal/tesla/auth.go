package tesla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/XaviFortes/tesla-tracker/internal/metrics"
	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

const (
	defaultTokenURL = "https://auth.tesla.com/oauth2/v3/token" //nolint:gosec // not a credential
	defaultClientID = "ownerapi"

	oauthScope  = "openid email offline_access"
	redirectURI = "https://auth.tesla.com/void/callback"
)

// Exchanger trades a refresh token for a fresh token pair.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}

// TokenExchanger implements Exchanger against the Tesla SSO token
// endpoint using the refresh_token grant. Tesla rotates refresh tokens,
// so the returned pair replaces both halves of the stored credentials.
type TokenExchanger struct {
	tokenURL string
	clientID string
	client   *http.Client
}

// TokenOption configures the TokenExchanger.
type TokenOption func(*TokenExchanger)

// WithTokenURL overrides the default Tesla SSO token endpoint.
func WithTokenURL(u string) TokenOption {
	return func(x *TokenExchanger) {
		x.tokenURL = u
	}
}

// WithClientID overrides the OAuth client identifier.
func WithClientID(id string) TokenOption {
	return func(x *TokenExchanger) {
		x.clientID = id
	}
}

// WithTokenHTTPClient overrides the default HTTP client.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(x *TokenExchanger) {
		x.client = c
	}
}

// NewTokenExchanger creates a token exchanger for the Tesla owner app
// client.
func NewTokenExchanger(opts ...TokenOption) *TokenExchanger {
	x := &TokenExchanger{
		tokenURL: defaultTokenURL,
		clientID: defaultClientID,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Exchange performs the refresh_token grant and returns the rotated
// token pair.
func (x *TokenExchanger) Exchange(
	ctx context.Context,
	refreshToken string,
) (domain.TokenPair, error) {
	payload := map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     x.clientID,
		"refresh_token": refreshToken,
		"scope":         oauthScope,
	}
	pair, err := x.post(ctx, payload)
	if err != nil {
		metrics.TokenRefreshFailuresTotal.Inc()
		return domain.TokenPair{}, err
	}
	metrics.TokenRefreshesTotal.Inc()
	return pair, nil
}

// ExchangeCode performs the authorization_code grant used by the
// interactive PKCE login flow.
func (x *TokenExchanger) ExchangeCode(
	ctx context.Context,
	code, codeVerifier string,
) (domain.TokenPair, error) {
	payload := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     x.clientID,
		"code":          code,
		"code_verifier": codeVerifier,
		"redirect_uri":  redirectURI,
	}
	return x.post(ctx, payload)
}

func (x *TokenExchanger) post(
	ctx context.Context,
	payload map[string]string,
) (domain.TokenPair, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		x.tokenURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.TokenPair{}, fmt.Errorf(
			"token request failed (status %d): %s",
			resp.StatusCode,
			string(respBody),
		)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return domain.TokenPair{}, fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		return domain.TokenPair{}, fmt.Errorf("token response missing tokens")
	}

	return domain.TokenPair{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}
