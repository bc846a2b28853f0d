// Package main generates Grafana dashboard JSON and Prometheus rule
// files for tesla-tracker monitoring.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/XaviFortes/tesla-tracker/tools/dashgen/dashboards"
	"github.com/XaviFortes/tesla-tracker/tools/dashgen/rules"
)

const generatedHeader = "# Generated by tools/dashgen. Do not edit by hand.\n"

func main() {
	validateOnly := flag.Bool("validate", false, "validate generated artifacts without writing files")
	outputDir := flag.String("output", "", "override output directory")
	flag.Parse()

	cfg := DefaultConfig()
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *validateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config, validateOnly bool) error {
	artifacts, err := buildArtifacts(cfg)
	if err != nil {
		return err
	}

	if validateOnly {
		fmt.Printf("validation passed (%d artifacts)\n", len(artifacts))
		return nil
	}

	for path, data := range artifacts {
		full := filepath.Join(cfg.OutputDir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(full, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", full, err)
		}
		fmt.Printf("wrote %s\n", full)
	}
	return nil
}

// buildArtifacts renders every enabled artifact keyed by its path
// relative to the output directory.
func buildArtifacts(cfg Config) (map[string][]byte, error) {
	artifacts := make(map[string][]byte)

	if cfg.DashboardEnabled {
		dash, err := dashboards.BuildOverview().Build()
		if err != nil {
			return nil, fmt.Errorf("building overview dashboard: %w", err)
		}
		data, err := json.MarshalIndent(dash, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding overview dashboard: %w", err)
		}
		artifacts[filepath.Join("grafana", "data", "tracker-overview.json")] = append(data, '\n')
	}

	if cfg.RulesEnabled {
		for name, cr := range map[string]rules.PrometheusRule{
			"tracker-recording-rules.yaml": rules.RecordingRules(),
			"tracker-alerts.yaml":          rules.AlertRules(),
		} {
			data, err := yaml.Marshal(cr)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", name, err)
			}
			artifacts[filepath.Join("prometheus", name)] = append([]byte(generatedHeader), data...)
		}
	}

	return artifacts, nil
}
