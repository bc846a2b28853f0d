package tesla

import "fmt"

// AuthError indicates the stored credentials are no longer usable: the
// access token was rejected and a refresh attempt did not recover. The
// caller should stop polling and ask the subscriber to log in again.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed, login required: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError is a non-auth failure response from a Tesla endpoint.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("tesla API error (status %d): %s", e.Status, body)
}
