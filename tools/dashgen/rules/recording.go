package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "tracker-recording-rules",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "tracker-recording",
					Rules: []Rule{
						{
							Record: "tracker:http_requests:rate5m",
							Expr:   `sum(rate(tesla_tracker_http_requests_total[5m]))`,
						},
						{
							Record: "tracker:http_errors:rate5m",
							Expr:   `sum(rate(tesla_tracker_http_requests_total{status=~"5.."}[5m]))`,
						},
						{
							Record: "tracker:order_cycle_errors:rate5m",
							Expr:   `rate(tesla_tracker_order_cycle_errors_total[5m])`,
						},
						{
							Record: "tracker:inventory_watch_errors:rate5m",
							Expr:   `rate(tesla_tracker_inventory_watch_errors_total[5m])`,
						},
						{
							Record: "tracker:token_refresh_failures:rate5m",
							Expr:   `rate(tesla_tracker_token_refresh_failures_total[5m])`,
						},
						{
							Record: "tracker:owner_api_calls:rate5m",
							Expr:   `sum(rate(tesla_tracker_owner_api_calls_total[5m]))`,
						},
					},
				},
			},
		},
	}
}
