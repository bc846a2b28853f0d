package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// tesla-tracker operational monitoring.
func AlertRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "tracker-alerts",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "tracker-alerts",
					Rules: []Rule{
						{
							Alert: "TrackerDown",
							Expr:  `absent(up{job="tesla-tracker"})`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Tesla Tracker is down",
								"description": "The tesla-tracker job has been absent for more than 2 minutes.",
							},
						},
						{
							Alert: "TrackerReadinessDown",
							Expr:  `tesla_tracker_readyz_up == 0`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Tesla Tracker readiness check is failing",
								"description": "The readiness probe has been reporting not-ready for more than 2 minutes. The store is likely unreachable.",
							},
						},
						{
							Alert: "TrackerHighErrorRate",
							Expr:  `tracker:http_errors:rate5m / tracker:http_requests:rate5m > 0.05`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "High HTTP error rate on Tesla Tracker",
								"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
							},
						},
						{
							Alert: "TrackerOrderCycleErrors",
							Expr:  `tracker:order_cycle_errors:rate5m > 0`,
							For:   "15m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Order poll cycles are failing",
								"description": "Order poll cycles have been failing for more than 15 minutes. Check owner API availability and subscriber tokens.",
							},
						},
						{
							Alert: "TrackerInventoryWatchErrors",
							Expr:  `tracker:inventory_watch_errors:rate5m > 0`,
							For:   "15m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Inventory watch evaluations are failing",
								"description": "Individual inventory watch checks have been failing for more than 15 minutes. The public inventory API may be blocking requests.",
							},
						},
						{
							Alert: "TrackerTokenRefreshFailures",
							Expr:  `increase(tesla_tracker_token_refresh_failures_total[30m]) > 3`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Refresh-token exchanges are failing repeatedly",
								"description": "More than 3 refresh-token exchanges failed in the last 30 minutes. Affected subscribers will be asked to log in again.",
							},
						},
						{
							Alert: "TrackerNotificationFailures",
							Expr:  `increase(tesla_tracker_notification_failures_total[5m]) > 0`,
							For:   "1m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Notification delivery failures detected",
								"description": "One or more Telegram messages have failed to send.",
							},
						},
					},
				},
			},
		},
	}
}
