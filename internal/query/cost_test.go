package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wattline/pkg/pricing"
)

func costSchedule() *pricing.Schedule {
	return &pricing.Schedule{
		Currency:       "EUR",
		ProducingPrice: 0.09,
		Periods: []pricing.Period{
			{StartMinute: 360, EndMinute: 1320, Price: 0.32},
			{StartMinute: 1320, EndMinute: 360, Price: 0.21},
		},
	}
}

func TestGridCost(t *testing.T) {
	day := &GridResponse{
		Consumption: Response{
			Data: []Point{
				{Label: "07:00", KWh: 2.0, Timestamp: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC).Unix()},
				{Label: "23:00", KWh: 1.0, Timestamp: time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC).Unix()},
			},
			Total: 3.0,
		},
		FeedIn: Response{Total: 4.0},
	}

	cost := day.Cost(costSchedule(), time.UTC)
	require.InDelta(t, 2.0*0.32+1.0*0.21, cost.Consumption, 1e-9)
	require.InDelta(t, 4.0*0.09, cost.FeedIn, 1e-9)
}

func TestSeriesCostUsesPointTimestamps(t *testing.T) {
	r := &Response{
		Data: []Point{
			{KWh: 1.5, Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix()},
			{KWh: 0.5, Timestamp: time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC).Unix()},
		},
	}
	require.InDelta(t, 1.5*0.32+0.5*0.21, r.Cost(costSchedule(), time.UTC), 1e-9)
}

func TestCostNilSafety(t *testing.T) {
	var g *GridResponse
	require.Zero(t, g.Cost(costSchedule(), time.UTC))

	var r *Response
	require.Zero(t, r.Cost(costSchedule(), time.UTC))

	priced := &Response{Data: []Point{{KWh: 2, Timestamp: 0}}}
	require.Zero(t, priced.Cost(nil, time.UTC))
}
