// Package rollup turns raw power readings into minute buckets and keeps
// the aggregation checkpoint moving forward.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"wattline/internal/cache"
	"wattline/internal/querycache"
	"wattline/internal/repo"
	"wattline/pkg/energy"
)

// ErrAlreadyRunning reports that another aggregator holds the run lock.
var ErrAlreadyRunning = errors.New("rollup: aggregation already running")

// Locker serializes aggregation runs across processes. *redis.RedisLock
// satisfies it; a nil Locker disables locking and leaves coordination to
// the checkpoint's conditional writes.
type Locker interface {
	AcquireCtx(ctx context.Context) (bool, error)
	ReleaseCtx(ctx context.Context) (bool, error)
}

// Config wires a Job. Readings, Buckets and Checkpoint are required.
type Config struct {
	Readings   repo.ReadingsRepo
	Buckets    repo.BucketsRepo
	Checkpoint repo.CheckpointRepo
	Cache      querycache.Cache
	Lock       Locker
	Now        func() time.Time

	// CheckpointEvery persists the cursor after this many written buckets.
	CheckpointEvery int
	// SeedLookback bounds the initial cursor when no readings exist yet.
	SeedLookback time.Duration
	// ChunkMinutes caps how many minutes a single ProcessLatest run walks,
	// so catch-up after downtime spreads across ticks.
	ChunkMinutes int
}

// RunResult summarizes one aggregation pass.
type RunResult struct {
	RunID   uuid.UUID
	From    int64 // first minute examined, 0 when already caught up
	To      int64 // last minute examined
	Buckets int   // buckets written
	Skipped int   // minutes left unbucketed for lack of readings
}

// Minutes reports how many minute slots the run examined.
func (r RunResult) Minutes() int {
	if r.From == 0 || r.To < r.From {
		return 0
	}
	return int((r.To-r.From)/60) + 1
}

// Job owns the readings-to-buckets pipeline.
type Job struct {
	readings   repo.ReadingsRepo
	buckets    repo.BucketsRepo
	checkpoint repo.CheckpointRepo
	cache      querycache.Cache
	lock       Locker
	now        func() time.Time

	checkpointEvery int
	seedLookback    time.Duration
	chunkMinutes    int
}

func New(cfg Config) (*Job, error) {
	if cfg.Readings == nil {
		return nil, errors.New("rollup: missing readings repo")
	}
	if cfg.Buckets == nil {
		return nil, errors.New("rollup: missing buckets repo")
	}
	if cfg.Checkpoint == nil {
		return nil, errors.New("rollup: missing checkpoint repo")
	}

	j := &Job{
		readings:        cfg.Readings,
		buckets:         cfg.Buckets,
		checkpoint:      cfg.Checkpoint,
		cache:           cfg.Cache,
		lock:            cfg.Lock,
		now:             cfg.Now,
		checkpointEvery: cfg.CheckpointEvery,
		seedLookback:    cfg.SeedLookback,
		chunkMinutes:    cfg.ChunkMinutes,
	}
	if j.cache == nil {
		j.cache = querycache.NewMemory()
	}
	if j.now == nil {
		j.now = time.Now
	}
	if j.checkpointEvery <= 0 {
		j.checkpointEvery = 10
	}
	if j.seedLookback <= 0 {
		j.seedLookback = 24 * time.Hour
	}
	if j.chunkMinutes <= 0 {
		j.chunkMinutes = 360
	}
	return j, nil
}

// ProcessLatest advances the checkpoint from its current position toward
// the most recent complete minute. The minute still in progress is never
// touched. Safe to call on every tick; a caught-up job is a no-op.
func (j *Job) ProcessLatest(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: uuid.New()}

	release, err := j.acquire(ctx)
	if err != nil {
		return res, err
	}
	defer release()

	nowTS := j.now().Unix()
	limit := energy.MinuteStart(nowTS)

	cp, err := j.loadOrSeed(ctx, nowTS, limit)
	if err != nil {
		return res, err
	}

	start := cp.LastProcessed + 60
	if start >= limit {
		if err := j.checkpoint.MarkStatus(ctx, repo.CheckpointCompleted, nowTS); err != nil {
			return res, err
		}
		return res, nil
	}
	if max := start + int64(j.chunkMinutes)*60; limit > max {
		limit = max
	}
	if cp.Status != repo.CheckpointRunning {
		if err := j.checkpoint.MarkStatus(ctx, repo.CheckpointRunning, nowTS); err != nil {
			return res, err
		}
	}

	res.From = start
	expected := cp.LastProcessed
	cursor := expected
	written := 0
	runErr := func() error {
		for ; start < limit; start += 60 {
			ok, err := j.AggregateMinute(ctx, start)
			if err != nil {
				return err
			}
			cursor = start
			res.To = start
			if ok {
				res.Buckets++
				written++
			} else {
				res.Skipped++
			}
			if written >= j.checkpointEvery {
				if err := j.checkpoint.Advance(ctx, expected, cursor, j.now().Unix(), repo.CheckpointRunning); err != nil {
					return err
				}
				expected = cursor
				written = 0
			}
		}
		return nil
	}()
	if runErr != nil {
		if err := j.checkpoint.MarkStatus(ctx, repo.CheckpointError, j.now().Unix()); err != nil {
			logx.WithContext(ctx).Errorf("rollup: mark checkpoint error: %v", err)
		}
		return res, runErr
	}

	if err := j.checkpoint.Advance(ctx, expected, cursor, j.now().Unix(), repo.CheckpointCompleted); err != nil {
		return res, err
	}

	j.finish(ctx, res)
	return res, nil
}

// Backfill rebuilds buckets for every minute intersecting [from, to].
// Historical ranges leave the checkpoint untouched; a contiguous range
// reaching past the cursor advances it. The minute still in progress is
// excluded.
func (j *Job) Backfill(ctx context.Context, from, to int64) (RunResult, error) {
	res := RunResult{RunID: uuid.New()}
	if to < from {
		return res, fmt.Errorf("rollup: backfill range [%d, %d] inverted", from, to)
	}

	release, err := j.acquire(ctx)
	if err != nil {
		return res, err
	}
	defer release()

	last := energy.MinuteStart(to)
	if max := energy.MinuteStart(j.now().Unix()) - 60; last > max {
		last = max
	}
	start := energy.MinuteStart(from)
	if start > last {
		return res, nil
	}

	var cursor int64
	haveCursor := false
	cp, err := j.checkpoint.Load(ctx)
	if err == nil {
		cursor = cp.LastProcessed
		haveCursor = true
	} else if !errors.Is(err, repo.ErrNotFound) {
		return res, err
	}
	// Only a range that connects to the cursor may advance it; a detached
	// range further ahead would record the skipped minutes as processed.
	extendsCursor := haveCursor && start <= cursor+60

	res.From = start
	expected := cursor
	written := 0
	for ; start <= last; start += 60 {
		ok, err := j.AggregateMinute(ctx, start)
		if err != nil {
			return res, err
		}
		res.To = start
		if ok {
			res.Buckets++
			written++
		} else {
			res.Skipped++
		}
		if extendsCursor && start > expected && written >= j.checkpointEvery {
			if err := j.checkpoint.Advance(ctx, expected, start, j.now().Unix(), repo.CheckpointRunning); err != nil {
				return res, err
			}
			expected = start
			written = 0
		}
	}
	if extendsCursor && res.To > expected {
		if err := j.checkpoint.Advance(ctx, expected, res.To, j.now().Unix(), repo.CheckpointCompleted); err != nil {
			return res, err
		}
	}

	j.finish(ctx, res)
	return res, nil
}

// AggregateMinute rebuilds the bucket for the minute beginning at start.
// Returns false without error when the minute lacks enough distinct
// readings to integrate.
func (j *Job) AggregateMinute(ctx context.Context, start int64) (bool, error) {
	rows, err := j.readings.Range(ctx, start, start+59)
	if err != nil {
		return false, err
	}
	deduped := dedupeReadings(rows)
	if len(deduped) < 2 {
		return false, nil
	}

	first, last := deduped[0], deduped[len(deduped)-1]
	b := repo.Bucket{
		BucketStart:    start,
		BucketEnd:      start + 60,
		ReadingsCount:  int64(len(rows)),
		FirstTimestamp: first.Timestamp,
		LastTimestamp:  last.Timestamp,
		HomeFirstW:     first.HomeW,
		HomeLastW:      last.HomeW,
		GridFirstW:     first.GridW,
		GridLastW:      last.GridW,
		CarFirstW:      first.CarW,
		CarLastW:       last.CarW,
		SolarFirstW:    first.SolarW,
		SolarLastW:     last.SolarW,
	}

	samples := make([]energy.Sample, len(deduped))
	for _, ch := range energy.Channels() {
		for i, row := range deduped {
			samples[i] = row.Sample(ch)
		}
		kwh := energy.Integrate(samples)
		switch ch {
		case energy.ChannelHome:
			b.HomeKWh = kwh
		case energy.ChannelGrid:
			b.GridKWh = kwh
		case energy.ChannelCar:
			b.CarKWh = kwh
		case energy.ChannelSolar:
			b.SolarKWh = kwh
		}
	}

	if err := j.buckets.Upsert(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

func (j *Job) loadOrSeed(ctx context.Context, nowTS, limit int64) (repo.Checkpoint, error) {
	cp, err := j.checkpoint.Load(ctx)
	if err == nil {
		return cp, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return repo.Checkpoint{}, err
	}

	seed, err := j.seedCursor(ctx, nowTS)
	if err != nil {
		return repo.Checkpoint{}, err
	}
	if seed > limit-60 {
		seed = limit - 60
	}
	return j.checkpoint.Seed(ctx, seed, nowTS)
}

// seedCursor places the initial cursor one minute before the earliest
// reading so that minute becomes the first one processed. Without any
// readings the lookback window bounds how far back the job starts.
func (j *Job) seedCursor(ctx context.Context, nowTS int64) (int64, error) {
	earliest, err := j.readings.EarliestTimestamp(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return energy.MinuteStart(nowTS - int64(j.seedLookback/time.Second)), nil
	}
	if err != nil {
		return 0, err
	}
	return energy.MinuteStart(earliest) - 60, nil
}

func (j *Job) acquire(ctx context.Context) (func(), error) {
	if j.lock == nil {
		return func() {}, nil
	}
	ok, err := j.lock.AcquireCtx(ctx)
	if err != nil {
		// Lock transport trouble must not stall aggregation; the
		// checkpoint's conditional writes still reject concurrent runs.
		logx.WithContext(ctx).Errorf("rollup: acquire run lock: %v", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return func() {
		if _, err := j.lock.ReleaseCtx(ctx); err != nil {
			logx.WithContext(ctx).Errorf("rollup: release run lock: %v", err)
		}
	}, nil
}

func (j *Job) finish(ctx context.Context, res RunResult) {
	if res.Buckets == 0 {
		return
	}
	j.cache.InvalidatePattern(ctx, cache.QueryPattern())
	if err := j.buckets.RebuildRollups(ctx, res.From, res.To); err != nil {
		logx.WithContext(ctx).Errorf("rollup: rebuild rollups [%d, %d]: %v", res.From, res.To, err)
	}
}

func dedupeReadings(rows []repo.Reading) []repo.Reading {
	if len(rows) == 0 {
		return nil
	}
	out := make([]repo.Reading, 0, len(rows))
	out = append(out, rows[0])
	for _, row := range rows[1:] {
		if row.Timestamp == out[len(out)-1].Timestamp {
			out[len(out)-1] = row
			continue
		}
		out = append(out, row)
	}
	return out
}
