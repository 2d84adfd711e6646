package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"wattline/pkg/energy"
)

// Bucket is one calendar minute of rolled-up energy. Besides the
// integrated kWh it retains the first and last raw sample per channel;
// those two points are what arbitrary-range queries stitch from.
type Bucket struct {
	BucketStart    int64
	BucketEnd      int64
	HomeKWh        float64
	GridKWh        float64
	CarKWh         float64
	SolarKWh       float64
	ReadingsCount  int64
	FirstTimestamp int64
	LastTimestamp  int64
	HomeFirstW     float64
	HomeLastW      float64
	GridFirstW     float64
	GridLastW      float64
	CarFirstW      float64
	CarLastW       float64
	SolarFirstW    float64
	SolarLastW     float64
}

// KWh returns the stored energy for a channel.
func (b Bucket) KWh(ch energy.Channel) float64 {
	switch ch {
	case energy.ChannelHome:
		return b.HomeKWh
	case energy.ChannelGrid:
		return b.GridKWh
	case energy.ChannelCar:
		return b.CarKWh
	case energy.ChannelSolar:
		return b.SolarKWh
	default:
		return 0
	}
}

// EdgeSamples returns the bucket's first and last raw samples for a
// channel.
func (b Bucket) EdgeSamples(ch energy.Channel) (first, last energy.Sample) {
	first = energy.Sample{Timestamp: b.FirstTimestamp}
	last = energy.Sample{Timestamp: b.LastTimestamp}
	switch ch {
	case energy.ChannelHome:
		first.Watts, last.Watts = b.HomeFirstW, b.HomeLastW
	case energy.ChannelGrid:
		first.Watts, last.Watts = b.GridFirstW, b.GridLastW
	case energy.ChannelCar:
		first.Watts, last.Watts = b.CarFirstW, b.CarLastW
	case energy.ChannelSolar:
		first.Watts, last.Watts = b.SolarFirstW, b.SolarLastW
	}
	return first, last
}

// RollupRow is one hourly or daily aggregate over buckets.
type RollupRow struct {
	WindowStart   int64
	HomeKWh       float64
	GridKWh       float64
	CarKWh        float64
	SolarKWh      float64
	ReadingsCount int64
	BucketCount   int64
}

// BucketsRepo persists minute buckets and their derived rollups.
type BucketsRepo interface {
	// Upsert writes a bucket keyed by bucket_start, overwriting any prior
	// content atomically.
	Upsert(ctx context.Context, b Bucket) error
	// Range returns buckets fully contained in [from, to), ascending by
	// bucket_start.
	Range(ctx context.Context, from, to int64) ([]Bucket, error)
	// LatestStart returns the newest bucket_start, ErrNotFound when no
	// bucket exists yet.
	LatestStart(ctx context.Context) (int64, error)
	// RebuildRollups recomputes the hourly and daily projections for
	// every window touching buckets in [from, to]. Idempotent.
	RebuildRollups(ctx context.Context, from, to int64) error
	// HourlyRange returns hourly rollups with from <= hour_start < to.
	// Missing rows mean "no data", never an error.
	HourlyRange(ctx context.Context, from, to int64) ([]RollupRow, error)
	// DailyRange returns daily rollups with from <= day_start < to. Day
	// starts sit at local midnight.
	DailyRange(ctx context.Context, from, to int64) ([]RollupRow, error)
}

type bucketsRepo struct {
	conn sqlx.SqlConn
	loc  *time.Location
}

func newBucketsRepo(deps Dependencies) BucketsRepo {
	return &bucketsRepo{conn: deps.DBConn, loc: deps.Location}
}

func (r *bucketsRepo) Upsert(ctx context.Context, b Bucket) error {
	const query = `
INSERT INTO energy_buckets (
    bucket_start, bucket_end,
    home_kwh, grid_kwh, car_kwh, solar_kwh,
    readings_count, first_timestamp, last_timestamp,
    home_first_w, home_last_w,
    grid_first_w, grid_last_w,
    car_first_w, car_last_w,
    solar_first_w, solar_last_w,
    created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9,
    $10, $11, $12, $13, $14, $15, $16, $17,
    NOW(), NOW()
)
ON CONFLICT (bucket_start) DO UPDATE SET
    bucket_end = EXCLUDED.bucket_end,
    home_kwh = EXCLUDED.home_kwh,
    grid_kwh = EXCLUDED.grid_kwh,
    car_kwh = EXCLUDED.car_kwh,
    solar_kwh = EXCLUDED.solar_kwh,
    readings_count = EXCLUDED.readings_count,
    first_timestamp = EXCLUDED.first_timestamp,
    last_timestamp = EXCLUDED.last_timestamp,
    home_first_w = EXCLUDED.home_first_w,
    home_last_w = EXCLUDED.home_last_w,
    grid_first_w = EXCLUDED.grid_first_w,
    grid_last_w = EXCLUDED.grid_last_w,
    car_first_w = EXCLUDED.car_first_w,
    car_last_w = EXCLUDED.car_last_w,
    solar_first_w = EXCLUDED.solar_first_w,
    solar_last_w = EXCLUDED.solar_last_w,
    updated_at = NOW()`

	if _, err := r.conn.ExecCtx(ctx, query,
		b.BucketStart, b.BucketEnd,
		b.HomeKWh, b.GridKWh, b.CarKWh, b.SolarKWh,
		b.ReadingsCount, b.FirstTimestamp, b.LastTimestamp,
		b.HomeFirstW, b.HomeLastW,
		b.GridFirstW, b.GridLastW,
		b.CarFirstW, b.CarLastW,
		b.SolarFirstW, b.SolarLastW); err != nil {
		return fmt.Errorf("bucketsRepo.Upsert exec: %w", err)
	}
	return nil
}

func (r *bucketsRepo) Range(ctx context.Context, from, to int64) ([]Bucket, error) {
	const query = `
SELECT
    bucket_start, bucket_end,
    home_kwh, grid_kwh, car_kwh, solar_kwh,
    readings_count, first_timestamp, last_timestamp,
    home_first_w, home_last_w,
    grid_first_w, grid_last_w,
    car_first_w, car_last_w,
    solar_first_w, solar_last_w
FROM energy_buckets
WHERE bucket_start >= $1 AND bucket_end <= $2
ORDER BY bucket_start ASC`

	var rows []bucketRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("bucketsRepo.Range query: %w", err)
	}

	buckets := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, row.record())
	}
	return buckets, nil
}

func (r *bucketsRepo) LatestStart(ctx context.Context) (int64, error) {
	const query = `
SELECT bucket_start
FROM energy_buckets
ORDER BY bucket_start DESC
LIMIT 1`

	var start int64
	if err := r.conn.QueryRowCtx(ctx, &start, query); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("bucketsRepo.LatestStart query: %w", err)
	}
	return start, nil
}

func (r *bucketsRepo) RebuildRollups(ctx context.Context, from, to int64) error {
	hourFrom := from / 3600 * 3600
	hourTo := to/3600*3600 + 3600

	fromDay := time.Unix(from, 0).In(r.loc)
	toDay := time.Unix(to, 0).In(r.loc)
	dayFrom := time.Date(fromDay.Year(), fromDay.Month(), fromDay.Day(), 0, 0, 0, 0, r.loc).Unix()
	dayTo := time.Date(toDay.Year(), toDay.Month(), toDay.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, 1).Unix()

	const hourlyQuery = `
INSERT INTO energy_rollup_hourly (
    hour_start, home_kwh, grid_kwh, car_kwh, solar_kwh,
    readings_count, bucket_count, updated_at
)
SELECT
    (bucket_start / 3600) * 3600 AS hour_start,
    SUM(home_kwh), SUM(grid_kwh), SUM(car_kwh), SUM(solar_kwh),
    SUM(readings_count), COUNT(*), NOW()
FROM energy_buckets
WHERE bucket_start >= $1 AND bucket_start < $2
GROUP BY 1
ON CONFLICT (hour_start) DO UPDATE SET
    home_kwh = EXCLUDED.home_kwh,
    grid_kwh = EXCLUDED.grid_kwh,
    car_kwh = EXCLUDED.car_kwh,
    solar_kwh = EXCLUDED.solar_kwh,
    readings_count = EXCLUDED.readings_count,
    bucket_count = EXCLUDED.bucket_count,
    updated_at = NOW()`

	const dailyQuery = `
INSERT INTO energy_rollup_daily (
    day_start, home_kwh, grid_kwh, car_kwh, solar_kwh,
    readings_count, bucket_count, updated_at
)
SELECT
    EXTRACT(EPOCH FROM date_trunc('day', to_timestamp(bucket_start) AT TIME ZONE $3) AT TIME ZONE $3)::bigint AS day_start,
    SUM(home_kwh), SUM(grid_kwh), SUM(car_kwh), SUM(solar_kwh),
    SUM(readings_count), COUNT(*), NOW()
FROM energy_buckets
WHERE bucket_start >= $1 AND bucket_start < $2
GROUP BY 1
ON CONFLICT (day_start) DO UPDATE SET
    home_kwh = EXCLUDED.home_kwh,
    grid_kwh = EXCLUDED.grid_kwh,
    car_kwh = EXCLUDED.car_kwh,
    solar_kwh = EXCLUDED.solar_kwh,
    readings_count = EXCLUDED.readings_count,
    bucket_count = EXCLUDED.bucket_count,
    updated_at = NOW()`

	err := r.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		if _, err := session.ExecCtx(ctx, hourlyQuery, hourFrom, hourTo); err != nil {
			return fmt.Errorf("hourly rebuild: %w", err)
		}
		if _, err := session.ExecCtx(ctx, dailyQuery, dayFrom, dayTo, r.loc.String()); err != nil {
			return fmt.Errorf("daily rebuild: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bucketsRepo.RebuildRollups: %w", err)
	}
	return nil
}

func (r *bucketsRepo) HourlyRange(ctx context.Context, from, to int64) ([]RollupRow, error) {
	const query = `
SELECT hour_start AS window_start, home_kwh, grid_kwh, car_kwh, solar_kwh, readings_count, bucket_count
FROM energy_rollup_hourly
WHERE hour_start >= $1 AND hour_start < $2
ORDER BY hour_start ASC`
	return r.rollupRange(ctx, "bucketsRepo.HourlyRange", query, from, to)
}

func (r *bucketsRepo) DailyRange(ctx context.Context, from, to int64) ([]RollupRow, error) {
	const query = `
SELECT day_start AS window_start, home_kwh, grid_kwh, car_kwh, solar_kwh, readings_count, bucket_count
FROM energy_rollup_daily
WHERE day_start >= $1 AND day_start < $2
ORDER BY day_start ASC`
	return r.rollupRange(ctx, "bucketsRepo.DailyRange", query, from, to)
}

func (r *bucketsRepo) rollupRange(ctx context.Context, op, query string, from, to int64) ([]RollupRow, error) {
	var rows []rollupRowScan
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("%s query: %w", op, err)
	}

	result := make([]RollupRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, RollupRow{
			WindowStart:   row.WindowStart,
			HomeKWh:       row.HomeKWh,
			GridKWh:       row.GridKWh,
			CarKWh:        row.CarKWh,
			SolarKWh:      row.SolarKWh,
			ReadingsCount: row.ReadingsCount,
			BucketCount:   row.BucketCount,
		})
	}
	return result, nil
}

type bucketRow struct {
	BucketStart    int64   `db:"bucket_start"`
	BucketEnd      int64   `db:"bucket_end"`
	HomeKWh        float64 `db:"home_kwh"`
	GridKWh        float64 `db:"grid_kwh"`
	CarKWh         float64 `db:"car_kwh"`
	SolarKWh       float64 `db:"solar_kwh"`
	ReadingsCount  int64   `db:"readings_count"`
	FirstTimestamp int64   `db:"first_timestamp"`
	LastTimestamp  int64   `db:"last_timestamp"`
	HomeFirstW     float64 `db:"home_first_w"`
	HomeLastW      float64 `db:"home_last_w"`
	GridFirstW     float64 `db:"grid_first_w"`
	GridLastW      float64 `db:"grid_last_w"`
	CarFirstW      float64 `db:"car_first_w"`
	CarLastW       float64 `db:"car_last_w"`
	SolarFirstW    float64 `db:"solar_first_w"`
	SolarLastW     float64 `db:"solar_last_w"`
}

func (row bucketRow) record() Bucket {
	return Bucket{
		BucketStart:    row.BucketStart,
		BucketEnd:      row.BucketEnd,
		HomeKWh:        row.HomeKWh,
		GridKWh:        row.GridKWh,
		CarKWh:         row.CarKWh,
		SolarKWh:       row.SolarKWh,
		ReadingsCount:  row.ReadingsCount,
		FirstTimestamp: row.FirstTimestamp,
		LastTimestamp:  row.LastTimestamp,
		HomeFirstW:     row.HomeFirstW,
		HomeLastW:      row.HomeLastW,
		GridFirstW:     row.GridFirstW,
		GridLastW:      row.GridLastW,
		CarFirstW:      row.CarFirstW,
		CarLastW:       row.CarLastW,
		SolarFirstW:    row.SolarFirstW,
		SolarLastW:     row.SolarLastW,
	}
}

type rollupRowScan struct {
	WindowStart   int64   `db:"window_start"`
	HomeKWh       float64 `db:"home_kwh"`
	GridKWh       float64 `db:"grid_kwh"`
	CarKWh        float64 `db:"car_kwh"`
	SolarKWh      float64 `db:"solar_kwh"`
	ReadingsCount int64   `db:"readings_count"`
	BucketCount   int64   `db:"bucket_count"`
}
