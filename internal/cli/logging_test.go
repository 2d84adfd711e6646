package cli_test

import (
	"strings"
	"testing"

	"wattline/internal/cli"
	"wattline/internal/config"
	"wattline/pkg/confkit"
	"wattline/pkg/pricing"
)

func summaryConfig() *config.Config {
	return &config.Config{
		Env:      "dev",
		Timezone: "Europe/Berlin",
		Postgres: config.PostgresConf{DSN: "postgres://localhost/wattline"},
		TTL:      config.CacheTTL{Short: 10, Medium: 60, Long: 300},
		Aggregator: config.AggregatorConf{
			IntervalSeconds:   60,
			RunTimeoutSeconds: 55,
			CheckpointEvery:   10,
		},
		Pricing: confkit.Section[pricing.Schedule]{File: "/etc/wattline/pricing.yaml"},
	}
}

func TestConfigSummaryLines(t *testing.T) {
	lines := cli.ConfigSummaryLines(summaryConfig())

	want := []string{
		"Environment: dev",
		"Timezone: Europe/Berlin",
		"Postgres: configured",
		"Redis: not configured",
		"TTL (short/medium/long): 10s / 60s / 300s",
		"Aggregator: tick 60s, run timeout 55s, checkpoint every 10 buckets",
		"Run journal: disabled",
		"Pricing config: /etc/wattline/pricing.yaml",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

func TestConfigSummaryLinesNil(t *testing.T) {
	lines := cli.ConfigSummaryLines(nil)
	if len(lines) != 1 || lines[0] != "Configuration: <nil>" {
		t.Errorf("ConfigSummaryLines(nil) = %v", lines)
	}
}

func TestConfigSummaryLinesSectionStates(t *testing.T) {
	cfg := summaryConfig()
	cfg.Aggregator.JournalDir = "journal"
	cfg.Pricing = confkit.Section[pricing.Schedule]{Value: &pricing.Schedule{}}

	lines := cli.ConfigSummaryLines(cfg)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "Run journal: journal") {
		t.Errorf("journal line missing: %v", lines)
	}
	if !strings.Contains(joined, "Pricing config: inline") {
		t.Errorf("inline pricing line missing: %v", lines)
	}

	cfg.Pricing = confkit.Section[pricing.Schedule]{}
	lines = cli.ConfigSummaryLines(cfg)
	if lines[len(lines)-1] != "Pricing config: not configured" {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
}
