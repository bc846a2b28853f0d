package tesla

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
)

const defaultAuthorizeURL = "https://auth.tesla.com/oauth2/v3/authorize"

// PKCEChallenge holds a code verifier and its S256 challenge for the
// interactive authorization flow.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
}

// NewPKCEChallenge generates a random 86-character verifier and the
// matching S256 challenge.
func NewPKCEChallenge() (PKCEChallenge, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	buf := make([]byte, 86)
	if _, err := rand.Read(buf); err != nil {
		return PKCEChallenge{}, fmt.Errorf("generating code verifier: %w", err)
	}
	for i, b := range buf {
		buf[i] = charset[int(b)%len(charset)]
	}
	verifier := string(buf)

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	return PKCEChallenge{Verifier: verifier, Challenge: challenge}, nil
}

// AuthorizeURL builds the browser login URL for the PKCE flow. The user
// logs in, lands on a void callback page, and pastes the redirected URL
// back so the authorization code can be extracted.
func AuthorizeURL(challenge string) string {
	params := url.Values{
		"client_id":             {defaultClientID},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"scope":                 {oauthScope},
		"state":                 {"tracker"},
	}
	return defaultAuthorizeURL + "?" + params.Encode()
}

// CodeFromRedirect extracts the authorization code from the pasted
// callback URL.
func CodeFromRedirect(redirected string) (string, error) {
	u, err := url.Parse(redirected)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL does not contain an authorization code")
	}
	return code, nil
}
