// Package domain defines the core business types for tesla-tracker.
package domain

import (
	"encoding/json"
	"time"
)

// Condition represents the inventory condition requested by a watch.
type Condition string

// Condition constants.
const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// ModelCode identifies a Tesla model in inventory queries and option tables.
type ModelCode string

// Model code constants.
const (
	ModelY ModelCode = "my"
	Model3 ModelCode = "m3"
	ModelS ModelCode = "ms"
	ModelX ModelCode = "mx"
)

// TokenPair holds a subscriber's OAuth credentials. The refresh token is
// always present once the subscriber exists; the access token may be empty
// (forces a refresh on the next API call) or stale (discovered via 401).
type TokenPair struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token"`
}

// OrderState is the snapshot of a single order captured at the last
// successful poll. Both summary and detail participate in the change
// predicate, so both are stored.
type OrderState struct {
	Summary json.RawMessage `json:"summary"`
	Detail  json.RawMessage `json:"detail"`

	// Discriminating fields, lifted out of the raw payloads so the diff
	// does not depend on payload shape.
	VIN            string `json:"vin,omitempty"`
	DeliveryWindow string `json:"delivery_window,omitempty"`
}

// Watch is a subscriber-defined inventory search with persistent dedup state.
type Watch struct {
	ID          string    `json:"id"`
	Model       ModelCode `json:"model"`
	Market      string    `json:"market"`
	Condition   Condition `json:"condition"`
	Trim        string    `json:"trim,omitempty"`
	MaxPrice    *float64  `json:"max_price,omitempty"`
	OptionCodes []string  `json:"option_codes,omitempty"`

	// SeenVINs is the ledger of candidates already notified.
	SeenVINs map[string]bool `json:"seen_vins,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Fingerprint identifies the cacheable upstream query this watch maps to.
// Watches with equal fingerprints share one inventory fetch.
func (w *Watch) Fingerprint() string {
	trim := w.Trim
	if trim == "" {
		trim = "all"
	}
	return w.Market + "_" + string(w.Model) + "_" + string(w.Condition) + "_" + trim
}

// Subscriber is one chat registered with the tracker. It owns its credential
// pair, order snapshot, and watches; deleting the subscriber cascades to all
// of them.
type Subscriber struct {
	ChatID string    `json:"chat_id"`
	Tokens TokenPair `json:"tokens"`

	// IntervalMinutes is the order polling period. Minimum 5.
	IntervalMinutes int `json:"interval_minutes"`

	// Orders is the last-observed snapshot, keyed by reference number and
	// replaced wholesale after each successful poll cycle.
	Orders map[string]OrderState `json:"orders,omitempty"`

	Watches []Watch `json:"watches,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderInterval returns the order polling period as a duration,
// falling back to the default for unset or invalid values.
func (s *Subscriber) OrderInterval() time.Duration {
	minutes := s.IntervalMinutes
	if minutes <= 0 {
		minutes = DefaultIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// WatchByID returns the watch with the given id, or nil.
func (s *Subscriber) WatchByID(id string) *Watch {
	for i := range s.Watches {
		if s.Watches[i].ID == id {
			return &s.Watches[i]
		}
	}
	return nil
}

// DefaultIntervalMinutes is the order polling period applied at login.
const DefaultIntervalMinutes = 30

// MinIntervalMinutes is the lowest order polling period a subscriber may set.
const MinIntervalMinutes = 5
