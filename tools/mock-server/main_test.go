package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XaviFortes/tesla-tracker/pkg/logger"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	fx, err := loadFixture("testdata/fixture.json")
	require.NoError(t, err)

	srv := httptest.NewServer(newMux(logger.Quiet(), fx))
	t.Cleanup(srv.Close)
	return srv
}

func postToken(t *testing.T, srv *httptest.Server, payload map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/oauth2/v3/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTokenHandler_RefreshGrant(t *testing.T) {
	srv := testServer(t)

	resp := postToken(t, srv, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": "anything",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// A second exchange must rotate the pair.
	resp2 := postToken(t, srv, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var rotated struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
}

func TestTokenHandler_MissingGrantType(t *testing.T) {
	srv := testServer(t)
	resp := postToken(t, srv, map[string]string{"refresh_token": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenHandler_MissingRefreshToken(t *testing.T) {
	srv := testServer(t)
	resp := postToken(t, srv, map[string]string{"grant_type": "refresh_token"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func getWithAuth(t *testing.T, rawURL string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer mock-access-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOrdersHandler(t *testing.T) {
	srv := testServer(t)

	resp := getWithAuth(t, srv.URL+"/api/1/users/orders")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Response []json.RawMessage `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Len(t, envelope.Response, 2)
}

func TestOrdersHandler_RequiresAuth(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/1/users/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTasksHandler(t *testing.T) {
	srv := testServer(t)

	resp := getWithAuth(t, srv.URL+"/tasks?referenceNumber=RN114200000")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail struct {
		Tasks struct {
			Scheduling struct {
				DeliveryWindowDisplay string `json:"deliveryWindowDisplay"`
			} `json:"scheduling"`
		} `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "December 1 - December 15", detail.Tasks.Scheduling.DeliveryWindowDisplay)
}

func TestTasksHandler_RequiresReference(t *testing.T) {
	srv := testServer(t)
	resp := getWithAuth(t, srv.URL+"/tasks")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func inventorySearch(t *testing.T, srv *httptest.Server, trims []string) []json.RawMessage {
	t.Helper()

	query := map[string]any{
		"query": map[string]any{
			"model":     "my",
			"condition": "new",
			"options":   map[string][]string{},
		},
	}
	if len(trims) > 0 {
		query["query"].(map[string]any)["options"] = map[string][]string{"TRIM": trims}
	}
	encoded, err := json.Marshal(query)
	require.NoError(t, err)

	params := url.Values{"query": {string(encoded)}}
	resp, err := http.Get(srv.URL + "/inventory/api/v4/inventory-results?" + params.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var apiResp struct {
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiResp))
	return apiResp.Results
}

func TestInventoryHandler_NoFilter(t *testing.T) {
	srv := testServer(t)
	assert.Len(t, inventorySearch(t, srv, nil), 2)
}

func TestInventoryHandler_TrimFilter(t *testing.T) {
	srv := testServer(t)

	results := inventorySearch(t, srv, []string{"MTY41"})
	require.Len(t, results, 1)
	assert.Contains(t, string(results[0]), "XP7YGCEK3SB300002")
}

func TestInventoryHandler_MalformedQuery(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/inventory/api/v4/inventory-results?query=not-json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
