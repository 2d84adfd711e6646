package svc_test

import (
	"testing"
	"time"

	"wattline/internal/cache"
	"wattline/internal/config"
	"wattline/internal/querycache"
	"wattline/internal/svc"
	"wattline/pkg/pricing"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		Env:      "test",
		Timezone: "UTC",
		TTL:      config.CacheTTL{Short: 10, Medium: 60, Long: 300},
		Aggregator: config.AggregatorConf{
			IntervalSeconds:      60,
			RunTimeoutSeconds:    55,
			CheckpointEvery:      10,
			SeedLookbackHours:    24,
			BackfillChunkMinutes: 360,
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return cfg
}

// TestNewServiceContextMemoryMode verifies that a config without
// Postgres or Redis still yields a usable context: in-memory cache,
// no storage-backed components.
func TestNewServiceContextMemoryMode(t *testing.T) {
	cfg := testConfig(t)
	ctx := svc.NewServiceContext(&cfg)

	if ctx.Cache == nil {
		t.Fatal("Cache should always be wired")
	}
	if _, ok := ctx.Cache.(*querycache.Memory); !ok {
		t.Errorf("Cache = %T, want *querycache.Memory without Redis", ctx.Cache)
	}
	if ctx.DBConn != nil {
		t.Error("DBConn should be nil without a DSN")
	}
	if ctx.Repos != nil {
		t.Error("Repos should be nil without a DSN")
	}
	if ctx.Aggregator != nil {
		t.Error("Aggregator should be nil without a DSN")
	}
	if ctx.Engine != nil {
		t.Error("Engine should be nil without a DSN")
	}
	if ctx.Redis != nil {
		t.Error("Redis should be nil without a host")
	}
	if ctx.Pricing != nil {
		t.Error("Pricing should be nil when no schedule is configured")
	}
}

// TestNewServiceContextTTLDefaults verifies that TTL classes resolve to
// the documented defaults when the config leaves them unset.
func TestNewServiceContextTTLDefaults(t *testing.T) {
	cfg := testConfig(t)
	// Validate rejects zero TTLs at load time, but NewTTLSet still guards
	// against a hand-built zero config.
	cfg.TTL = config.CacheTTL{}
	ctx := svc.NewServiceContext(&cfg)

	tests := []struct {
		class cache.TTLClass
		want  time.Duration
	}{
		{cache.TTLShort, 10 * time.Second},
		{cache.TTLMedium, time.Minute},
		{cache.TTLLong, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := ctx.TTL.Duration(tt.class); got != tt.want {
			t.Errorf("TTL.Duration(%s) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

// TestNewServiceContextPricingPassthrough verifies the hydrated pricing
// schedule is exposed unchanged.
func TestNewServiceContextPricingPassthrough(t *testing.T) {
	cfg := testConfig(t)
	schedule := &pricing.Schedule{
		Currency:       "EUR",
		ProducingPrice: 0.09,
		Periods: []pricing.Period{
			{StartMinute: 360, EndMinute: 1320, Price: 0.32},
			{StartMinute: 1320, EndMinute: 360, Price: 0.21},
		},
	}
	cfg.Pricing.Value = schedule

	ctx := svc.NewServiceContext(&cfg)
	if ctx.Pricing != schedule {
		t.Errorf("Pricing = %p, want the configured schedule %p", ctx.Pricing, schedule)
	}
}

// TestIsTestEnv verifies the environment detection logic.
func TestIsTestEnv(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"test", true},
		{"", true}, // Empty defaults to test
		{"dev", false},
		{"prod", false},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			cfg := config.Config{
				Env:      tt.env,
				Timezone: "UTC",
				TTL:      config.CacheTTL{Short: 10, Medium: 60, Long: 300},
				Aggregator: config.AggregatorConf{
					IntervalSeconds:      60,
					RunTimeoutSeconds:    55,
					CheckpointEvery:      10,
					SeedLookbackHours:    24,
					BackfillChunkMinutes: 360,
				},
			}
			// Normalize via Validate (which sets env to "test" if empty)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			result := cfg.IsTestEnv()
			if result != tt.expected {
				t.Errorf("IsTestEnv() for env=%q: expected %v, got %v (normalized to %q)",
					tt.env, tt.expected, result, cfg.Env)
			}
		})
	}
}
