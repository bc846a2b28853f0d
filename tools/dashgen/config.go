package main

import "errors"

// KnownMetrics is the set of metric names exported by tesla-tracker
// plus recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"tesla_tracker_http_request_duration_seconds": true,
	"tesla_tracker_http_requests_total":           true,

	// Health metrics.
	"tesla_tracker_healthz_up": true,
	"tesla_tracker_readyz_up":  true,

	// Poll cycle metrics.
	"tesla_tracker_order_cycles_total":           true,
	"tesla_tracker_order_cycle_errors_total":     true,
	"tesla_tracker_order_cycle_duration_seconds": true,
	"tesla_tracker_inventory_cycles_total":       true,
	"tesla_tracker_inventory_watch_errors_total": true,

	// Upstream API metrics.
	"tesla_tracker_owner_api_calls_total":        true,
	"tesla_tracker_token_refreshes_total":        true,
	"tesla_tracker_token_refresh_failures_total": true,
	"tesla_tracker_inventory_fetches_total":      true,
	"tesla_tracker_inventory_cache_hits_total":   true,

	// Notification metrics.
	"tesla_tracker_notifications_sent_total":    true,
	"tesla_tracker_notification_failures_total": true,

	// Scheduler metrics.
	"tesla_tracker_scheduled_jobs": true,

	// Recording rules.
	"tracker:http_requests:rate5m":          true,
	"tracker:http_errors:rate5m":            true,
	"tracker:order_cycle_errors:rate5m":     true,
	"tracker:inventory_watch_errors:rate5m": true,
	"tracker:token_refresh_failures:rate5m": true,
	"tracker:owner_api_calls:rate5m":        true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
