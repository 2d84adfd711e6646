package query

import (
	"context"
	"errors"
	"time"

	"wattline/internal/cache"
	"wattline/internal/querycache"
	"wattline/internal/repo"
	"wattline/pkg/energy"
)

// Ranges shorter than this integrate raw readings directly; longer ones
// go through the bucket store.
const bucketPathThreshold = 3600

// Config wires an Engine. Readings and Buckets are required.
type Config struct {
	Readings repo.ReadingsRepo
	Buckets  repo.BucketsRepo
	Cache    querycache.Cache
	TTL      time.Duration
	Location *time.Location
}

// Engine computes aggregated energy over arbitrary ranges. It is
// read-only and safe for unbounded concurrent callers; identical
// cache-missed queries may recompute in parallel, which is tolerated
// because recomputation is deterministic.
type Engine struct {
	readings repo.ReadingsRepo
	buckets  repo.BucketsRepo
	cache    querycache.Cache
	ttl      time.Duration
	loc      *time.Location
}

func New(cfg Config) (*Engine, error) {
	if cfg.Readings == nil {
		return nil, errors.New("query: missing readings repo")
	}
	if cfg.Buckets == nil {
		return nil, errors.New("query: missing buckets repo")
	}

	e := &Engine{
		readings: cfg.Readings,
		buckets:  cfg.Buckets,
		cache:    cfg.Cache,
		ttl:      cfg.TTL,
		loc:      cfg.Location,
	}
	if e.cache == nil {
		e.cache = querycache.NewMemory()
	}
	if e.ttl <= 0 {
		e.ttl = time.Minute
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	return e, nil
}

// AggregatedEnergy answers one range query, cache first. Storage errors
// propagate; cache trouble silently degrades to recomputation.
func (e *Engine) AggregatedEnergy(ctx context.Context, req Request) (*EnergyData, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	key := cache.QueryEnergyKey(string(req.Channel), string(req.Granularity), req.From, req.To)
	var cached EnergyData
	if e.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	var (
		samples []energy.Sample
		err     error
	)
	if req.To-req.From >= bucketPathThreshold {
		samples, err = e.stitched(ctx, req.Channel, req.From, req.To)
	} else {
		samples, err = e.raw(ctx, req.Channel, req.From, req.To)
	}
	if err != nil {
		return nil, err
	}

	data := e.assemble(req, samples)
	e.cache.Set(ctx, key, data, e.ttl)
	return data, nil
}

// HourlySummary reads the derived hourly projection. Hours without a row
// simply have no data; an unbuilt projection reads as empty.
func (e *Engine) HourlySummary(ctx context.Context, from, to int64) ([]repo.RollupRow, error) {
	return e.buckets.HourlyRange(ctx, from, to)
}

// DailySummary reads the derived daily projection, day starts at local
// midnight.
func (e *Engine) DailySummary(ctx context.Context, from, to int64) ([]repo.RollupRow, error) {
	return e.buckets.DailyRange(ctx, from, to)
}

func (e *Engine) raw(ctx context.Context, ch energy.Channel, from, to int64) ([]energy.Sample, error) {
	rows, err := e.readings.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	samples := make([]energy.Sample, len(rows))
	for i, row := range rows {
		samples[i] = row.Sample(ch)
	}
	return samples, nil
}

// stitched rebuilds one synthetic series for [from, to]: the stored
// first/last samples of every full bucket inside the range, raw readings
// for the unaligned boundary minutes, and one anchor reading just outside
// each unaligned edge. The same integrator then runs over it, keeping a
// single accumulation code path for both strategies.
func (e *Engine) stitched(ctx context.Context, ch energy.Channel, from, to int64) ([]energy.Sample, error) {
	fromMin := energy.MinuteStart(from)
	toMin := energy.MinuteStart(to)

	fullFrom := fromMin
	if from > fromMin {
		fullFrom = fromMin + 60
	}

	bks, err := e.buckets.Range(ctx, fullFrom, toMin)
	if err != nil {
		return nil, err
	}

	samples := make([]energy.Sample, 0, 2*len(bks)+8)

	if from > fromMin {
		anchor, err := e.readings.Before(ctx, from)
		if err != nil {
			return nil, err
		}
		if anchor != nil {
			samples = append(samples, anchor.Sample(ch))
		}
		rows, err := e.readings.Range(ctx, from, fullFrom)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			samples = append(samples, row.Sample(ch))
		}
	}

	for _, b := range bks {
		first, last := b.EdgeSamples(ch)
		samples = append(samples, first, last)
	}

	if to > toMin {
		rows, err := e.readings.Range(ctx, toMin, to)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			samples = append(samples, row.Sample(ch))
		}
		anchor, err := e.readings.After(ctx, to)
		if err != nil {
			return nil, err
		}
		if anchor != nil {
			samples = append(samples, anchor.Sample(ch))
		}
	}

	return samples, nil
}

func (e *Engine) assemble(req Request, samples []energy.Sample) *EnergyData {
	win := e.window(req.Granularity)
	data := &EnergyData{Channel: req.Channel, Granularity: req.Granularity}
	if req.Channel == energy.ChannelGrid {
		data.Grid = &GridResponse{
			Consumption: buildResponse(samples, win, energy.ConsumptionOnly),
			FeedIn:      buildResponse(samples, win, energy.FeedInOnly),
		}
		return data
	}
	resp := buildResponse(samples, win, nil)
	data.Series = &resp
	return data
}

func (e *Engine) window(g Granularity) energy.WindowFunc {
	if g == GranularityDay {
		return energy.DayWindow(e.loc)
	}
	return energy.HourWindow(e.loc)
}

func buildResponse(samples []energy.Sample, win energy.WindowFunc, filter energy.Filter) Response {
	points := energy.GroupByWindow(samples, win, filter)
	resp := Response{Total: energy.TotalEnergy(samples, filter)}
	if len(points) == 0 {
		return resp
	}
	resp.Data = make([]Point, 0, len(points))
	for _, p := range points {
		resp.Data = append(resp.Data, Point{Label: p.Label, KWh: p.KWh, Timestamp: p.Start})
	}
	return resp
}
