// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/XaviFortes/tesla-tracker/tools/dashgen/panels"
)

// BuildOverview constructs the Tesla Tracker Overview dashboard with all
// metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Tesla Tracker Overview").
		Uid("tracker-overview").
		Tags([]string{"tracker", "tesla-tracker"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.ScheduledJobsStat()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Polling.
	b.WithRow(dashboard.NewRowBuilder("Polling").
		WithPanel(panels.OrderCyclesRate()).
		WithPanel(panels.CycleErrors()).
		WithPanel(panels.CycleDuration()))

	// Row 4: Tesla API.
	b.WithRow(dashboard.NewRowBuilder("Tesla API").
		WithPanel(panels.OwnerAPICallsRate()).
		WithPanel(panels.InventoryCacheRatio()).
		WithPanel(panels.TokenRefreshFailures()))

	// Row 5: Notifications.
	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.NotificationsRate()).
		WithPanel(panels.NotificationFailures()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
