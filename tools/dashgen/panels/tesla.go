package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// OwnerAPICallsRate returns a timeseries panel showing the owner API
// call rate by outcome.
func OwnerAPICallsRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Owner API Calls").
		Description("Tesla owner API calls per second by outcome").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`sum(rate(tesla_tracker_owner_api_calls_total{job="tesla-tracker"}[5m])) by (outcome)`,
			"{{outcome}}", "A",
		)).
		Unit("reqps").
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// InventoryCacheRatio returns a timeseries panel showing upstream
// inventory fetches against cache hits.
func InventoryCacheRatio() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Inventory Fetches vs Cache Hits").
		Description("Upstream inventory API fetches and TTL cache hits per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`rate(tesla_tracker_inventory_fetches_total{job="tesla-tracker"}[5m]) * 60`,
			"fetches/min", "A",
		)).
		WithTarget(PromQuery(
			`rate(tesla_tracker_inventory_cache_hits_total{job="tesla-tracker"}[5m]) * 60`,
			"cache hits/min", "B",
		)).
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// TokenRefreshFailures returns a stat panel showing failed refresh-token
// exchanges in the past 24 hours.
func TokenRefreshFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Token Refresh Failures (24h)").
		Description("Failed refresh-token exchanges in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			`increase(tesla_tracker_token_refresh_failures_total{job="tesla-tracker"}[24h])`,
			"", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
