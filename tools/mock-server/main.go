// Package main implements a mock Tesla API server for local development.
// It serves canned responses from a JSON fixture to simulate the owner
// API, the SSO token endpoint, and the public inventory API without
// touching real Tesla credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

type fixture struct {
	Orders   []json.RawMessage `json:"orders"`
	Tasks    json.RawMessage   `json:"tasks"`
	Vehicles []json.RawMessage `json:"vehicles"`
}

// vehicleSummary carries the fields the inventory filter matches on.
type vehicleSummary struct {
	TrimName       string   `json:"TrimName"`
	OptionCodeList []string `json:"OptionCodeList"`
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/fixture.json", "path to fixture file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fx, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "orders", len(fx.Orders), "vehicles", len(fx.Vehicles))

	mux := newMux(logger, fx)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock Tesla server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, fx *fixture) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/v3/token", tokenHandler(logger))
	mux.HandleFunc("GET /api/1/users/orders", ordersHandler(logger, fx))
	mux.HandleFunc("GET /tasks", tasksHandler(logger, fx))
	mux.HandleFunc("GET /inventory/api/v4/inventory-results", inventoryHandler(logger, fx))
	return mux
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &fx, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

// tokenCounter makes each issued pair distinct, mirroring Tesla's
// refresh token rotation.
var tokenCounter atomic.Int64

func tokenHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			GrantType    string `json:"grant_type"`
			RefreshToken string `json:"refresh_token"`
			Code         string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.GrantType == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_request",
				"error_description": "grant_type is required",
			})
			logger.Warn("malformed token request")
			return
		}

		if payload.GrantType == "refresh_token" && payload.RefreshToken == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_grant",
				"error_description": "refresh token is missing",
			})
			return
		}

		n := tokenCounter.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  fmt.Sprintf("mock-access-%d", n),
			"refresh_token": fmt.Sprintf("mock-refresh-%d", n),
			"expires_in":    28800,
			"token_type":    "Bearer",
		})
		logger.Info("issued mock token pair", "grant_type", payload.GrantType, "serial", n)
	}
}

// requireBearer rejects requests without an Authorization header, which
// exercises the client's 401-refresh-retry path when pointed at tokens
// the mock never issued.
func requireBearer(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || auth == "Bearer " {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "invalid_token",
		})
		return false
	}
	return true
}

func ordersHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"response": rawList(fx.Orders)})
		logger.Info("served orders", "count", len(fx.Orders))
	}
}

func tasksHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		ref := r.URL.Query().Get("referenceNumber")
		if ref == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "referenceNumber is required",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if len(fx.Tasks) == 0 {
			_, _ = w.Write([]byte(`{"tasks":{}}`))
			return
		}
		_, _ = w.Write(fx.Tasks)
		logger.Info("served tasks", "reference", ref)
	}
}

func inventoryHandler(logger *slog.Logger, fx *fixture) http.HandlerFunc {
	// Pre-parse the filterable fields.
	type indexedVehicle struct {
		raw  json.RawMessage
		trim string
		opts map[string]bool
	}
	vehicles := make([]indexedVehicle, 0, len(fx.Vehicles))
	for _, raw := range fx.Vehicles {
		var s vehicleSummary
		//nolint:errcheck // fixture data is trusted; field extraction is best-effort
		json.Unmarshal(raw, &s)
		opts := make(map[string]bool, len(s.OptionCodeList))
		for _, code := range s.OptionCodeList {
			opts[code] = true
		}
		vehicles = append(vehicles, indexedVehicle{raw: raw, trim: s.TrimName, opts: opts})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var query struct {
			Query struct {
				Options map[string][]string `json:"options"`
			} `json:"query"`
		}
		raw := r.URL.Query().Get("query")
		if raw == "" || json.Unmarshal([]byte(raw), &query) != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "query parameter is malformed",
			})
			return
		}

		trims := query.Query.Options["TRIM"]
		var matched []json.RawMessage
		for _, v := range vehicles {
			if matchesTrim(v.opts, trims) {
				matched = append(matched, v.raw)
			}
		}
		if matched == nil {
			matched = []json.RawMessage{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"results":             matched,
			"total_matches_found": fmt.Sprintf("%d", len(matched)),
		})
		logger.Info("served inventory", "trims", trims, "matched", len(matched))
	}
}

// matchesTrim accepts the vehicle when no trim filter is set or any
// requested trim code appears in its option list.
func matchesTrim(opts map[string]bool, trims []string) bool {
	if len(trims) == 0 {
		return true
	}
	for _, trim := range trims {
		if opts[trim] || opts["$"+trim] {
			return true
		}
	}
	return false
}

func rawList(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort write to HTTP response in mock server
	_ = json.NewEncoder(w).Encode(body)
}
