package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIEndpoint = "https://api.telegram.org"

// Update is one incoming Bot API update. Only message updates are
// consumed; everything else still advances the offset.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// apiClient is a minimal Bot API client covering what the command
// loop needs: long polling and message deletion.
type apiClient struct {
	endpoint    string
	token       string
	client      *http.Client
	pollTimeout time.Duration
}

func newAPIClient(endpoint, token string, pollTimeout time.Duration) *apiClient {
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &apiClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		// The HTTP timeout must cover the long-poll hold time.
		client:      &http.Client{Timeout: pollTimeout + 10*time.Second},
		pollTimeout: pollTimeout,
	}
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []Update `json:"result"`
}

// getUpdates long-polls for updates after the given offset.
func (c *apiClient) getUpdates(ctx context.Context, offset int64) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(int(c.pollTimeout.Seconds()))},
		"allowed_updates": {`["message"]`},
	}

	body, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var resp updatesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing getUpdates response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("getUpdates rejected: %s", resp.Description)
	}
	return resp.Result, nil
}

// deleteMessage removes a message, used to scrub pasted refresh
// tokens. Failure is expected when the bot lacks delete permissions.
func (c *apiClient) deleteMessage(ctx context.Context, chatID string, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", url.Values{
		"chat_id":    {chatID},
		"message_id": {strconv.FormatInt(messageID, 10)},
	})
	return err
}

func (c *apiClient) call(
	ctx context.Context,
	method string,
	params url.Values,
) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.endpoint, c.token, method)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%s failed (status %d): %s",
			method, resp.StatusCode, string(body),
		)
	}
	return body, nil
}
