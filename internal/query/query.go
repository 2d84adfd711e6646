// Package query answers arbitrary-range energy questions, stitching
// minute buckets with boundary raw readings so wide ranges stay cheap
// without losing the exact edges.
package query

import (
	"fmt"
	"time"

	"wattline/pkg/energy"
	"wattline/pkg/pricing"
)

// Granularity selects the presentation window of a response.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityHour, GranularityDay:
		return g, nil
	default:
		return "", fmt.Errorf("query: unknown granularity %q", s)
	}
}

// Request describes one aggregate query. From and To are unix seconds;
// both endpoints are part of the range.
type Request struct {
	From        int64
	To          int64
	Granularity Granularity
	Channel     energy.Channel
}

func (r Request) validate() error {
	if r.To < r.From {
		return fmt.Errorf("query: range [%d, %d] inverted", r.From, r.To)
	}
	if _, err := energy.ParseChannel(string(r.Channel)); err != nil {
		return err
	}
	if _, err := ParseGranularity(string(r.Granularity)); err != nil {
		return err
	}
	return nil
}

// Point is one presentation window of a response.
type Point struct {
	Label     string  `msgpack:"label"`
	KWh       float64 `msgpack:"kwh"`
	Timestamp int64   `msgpack:"timestamp"`
}

// Response carries the windowed points plus the exact range total. The
// total is integrated over the whole series in one run, so it can exceed
// the sum of the points when sparse windows were dropped.
type Response struct {
	Data  []Point `msgpack:"data"`
	Total float64 `msgpack:"total"`
}

// GridResponse splits the signed grid series into what was drawn from
// the grid and what was exported to it.
type GridResponse struct {
	Consumption Response `msgpack:"consumption"`
	FeedIn      Response `msgpack:"feed_in"`
}

// EnergyData is the cached unit of one query. Exactly one of Series and
// Grid is set, depending on the channel.
type EnergyData struct {
	Channel     energy.Channel `msgpack:"channel"`
	Granularity Granularity    `msgpack:"granularity"`
	Series      *Response      `msgpack:"series,omitempty"`
	Grid        *GridResponse  `msgpack:"grid,omitempty"`
}

// Cost prices a consumption series against the schedule, each point at
// its own window start.
func (r *Response) Cost(s *pricing.Schedule, loc *time.Location) float64 {
	if r == nil {
		return 0
	}
	var total float64
	for _, p := range r.Data {
		total += s.ConsumptionCost(p.KWh, p.Timestamp, loc)
	}
	return total
}

// GridCost is the money view of a grid response.
type GridCost struct {
	Consumption float64 // owed for energy drawn from the grid
	FeedIn      float64 // earned for energy exported to the grid
}

// Cost prices both directions of a grid response. Consumption follows
// the time-of-day periods; feed-in uses the flat producing price.
func (g *GridResponse) Cost(s *pricing.Schedule, loc *time.Location) GridCost {
	if g == nil {
		return GridCost{}
	}
	return GridCost{
		Consumption: g.Consumption.Cost(s, loc),
		FeedIn:      s.FeedInCost(g.FeedIn.Total),
	}
}
