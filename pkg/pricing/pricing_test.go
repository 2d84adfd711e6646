package pricing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scheduleFixture() *Schedule {
	return &Schedule{
		Currency:       "EUR",
		ProducingPrice: 0.09,
		Periods: []Period{
			{StartMinute: 360, EndMinute: 1320, Price: 0.32},
			{StartMinute: 1320, EndMinute: 360, Price: 0.21},
		},
	}
}

func minuteTimestamp(t *testing.T, minute int) int64 {
	t.Helper()
	return time.Date(2024, 5, 1, minute/60, minute%60, 0, 0, time.UTC).Unix()
}

func TestConsumptionCostFirstMatchWins(t *testing.T) {
	s := scheduleFixture()
	cost := s.ConsumptionCost(2.0, minuteTimestamp(t, 700), time.UTC)
	require.InDelta(t, 2.0*0.32, cost, 1e-9)
}

func TestConsumptionCostWrapAround(t *testing.T) {
	s := &Schedule{Periods: []Period{{StartMinute: 1320, EndMinute: 360, Price: 0.21}}}

	// 22:00-06:00 covers 01:00 and 23:00.
	require.InDelta(t, 0.21, s.ConsumptionCost(1.0, minuteTimestamp(t, 60), time.UTC), 1e-9)
	require.InDelta(t, 0.21, s.ConsumptionCost(1.0, minuteTimestamp(t, 1380), time.UTC), 1e-9)

	// 11:40 is outside the wrap. A distinct first-period price shows the
	// lookup fell through to the gap fallback instead of matching.
	gapped := &Schedule{Periods: []Period{
		{StartMinute: 0, EndMinute: 60, Price: 0.10},
		{StartMinute: 1320, EndMinute: 360, Price: 0.21},
	}}
	require.InDelta(t, 0.10, gapped.ConsumptionCost(1.0, minuteTimestamp(t, 700), time.UTC), 1e-9)
}

func TestConsumptionCostGapFallsBackToFirstPeriod(t *testing.T) {
	s := &Schedule{Periods: []Period{
		{StartMinute: 0, EndMinute: 360, Price: 0.18},
		{StartMinute: 720, EndMinute: 1080, Price: 0.28},
	}}
	// 08:20 sits in neither period.
	require.InDelta(t, 0.18, s.ConsumptionCost(1.0, minuteTimestamp(t, 500), time.UTC), 1e-9)
}

func TestConsumptionCostLocalMinute(t *testing.T) {
	s := &Schedule{Periods: []Period{
		{StartMinute: 0, EndMinute: 360, Price: 0.18},
		{StartMinute: 360, EndMinute: 1320, Price: 0.32},
	}}
	// 05:30 UTC is 07:30 in UTC+2: day tariff locally, night tariff in UTC.
	ts := time.Date(2024, 5, 1, 5, 30, 0, 0, time.UTC).Unix()
	require.InDelta(t, 0.32, s.ConsumptionCost(1.0, ts, time.FixedZone("UTC+2", 2*3600)), 1e-9)
	require.InDelta(t, 0.18, s.ConsumptionCost(1.0, ts, time.UTC), 1e-9)
}

func TestConsumptionCostZeroCases(t *testing.T) {
	var nilSchedule *Schedule
	require.Zero(t, nilSchedule.ConsumptionCost(5, minuteTimestamp(t, 60), time.UTC))
	require.Zero(t, scheduleFixture().ConsumptionCost(0, minuteTimestamp(t, 60), time.UTC))
	require.Zero(t, scheduleFixture().ConsumptionCost(-1, minuteTimestamp(t, 60), time.UTC))

	empty := &Schedule{ProducingPrice: 0.09}
	require.Zero(t, empty.ConsumptionCost(5, minuteTimestamp(t, 60), time.UTC))
}

func TestFeedInCost(t *testing.T) {
	s := scheduleFixture()
	require.InDelta(t, 2.5*0.09, s.FeedInCost(2.5), 1e-9)
	require.Zero(t, s.FeedInCost(0))
	require.Zero(t, s.FeedInCost(-3))

	var nilSchedule *Schedule
	require.Zero(t, nilSchedule.FeedInCost(2.5))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	content := `currency: EUR
producing_price: 0.09
periods:
  - start_minute: 360
    end_minute: 1320
    price: 0.32
  - start_minute: 1320
    end_minute: 360
    price: 0.21
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "EUR", s.Currency)
	require.InDelta(t, 0.09, s.ProducingPrice, 1e-9)
	require.Len(t, s.Periods, 2)
	require.Equal(t, 360, s.Periods[0].StartMinute)
}

func TestLoadConfigExpandsCurrencyEnv(t *testing.T) {
	t.Setenv("WATTLINE_CURRENCY", "SEK")
	s, err := LoadConfigFromReader(strings.NewReader("currency: ${WATTLINE_CURRENCY}\nproducing_price: 0.05\n"))
	require.NoError(t, err)
	require.Equal(t, "SEK", s.Currency)
}

func TestLoadConfigRejectsBadMinutes(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader(`periods:
  - start_minute: 1500
    end_minute: 360
    price: 0.2
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "start_minute")
}

func TestLoadConfigRejectsNegativePrice(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader(`producing_price: -0.01`))
	require.Error(t, err)
}
