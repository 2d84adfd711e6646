package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"wattline/pkg/energy"
)

// Reading mirrors one raw multi-channel power sample. Grid wattage is
// signed; negative values are export.
type Reading struct {
	ID        int64
	Timestamp int64
	HomeW     float64
	GridW     float64
	CarW      float64
	SolarW    float64
}

// Value returns the wattage observed on a channel.
func (r Reading) Value(ch energy.Channel) float64 {
	switch ch {
	case energy.ChannelHome:
		return r.HomeW
	case energy.ChannelGrid:
		return r.GridW
	case energy.ChannelCar:
		return r.CarW
	case energy.ChannelSolar:
		return r.SolarW
	default:
		return 0
	}
}

// Sample converts one channel of the reading into an integrator sample.
func (r Reading) Sample(ch energy.Channel) energy.Sample {
	return energy.Sample{Timestamp: r.Timestamp, Watts: r.Value(ch)}
}

// ReadingsRepo is the append-only store of raw power samples.
type ReadingsRepo interface {
	// Insert appends one sample. Duplicate timestamps are allowed; rows
	// inserted later win when downstream stages deduplicate.
	Insert(ctx context.Context, reading Reading) error
	// Range returns readings with from <= timestamp <= to, ascending by
	// timestamp then id.
	Range(ctx context.Context, from, to int64) ([]Reading, error)
	// Before returns the latest reading strictly before ts, nil when the
	// history starts later.
	Before(ctx context.Context, ts int64) (*Reading, error)
	// After returns the earliest reading strictly after ts, nil when the
	// history ends earlier.
	After(ctx context.Context, ts int64) (*Reading, error)
	// EarliestTimestamp returns the first recorded timestamp,
	// ErrNotFound on an empty store.
	EarliestTimestamp(ctx context.Context) (int64, error)
}

type readingsRepo struct {
	conn sqlx.SqlConn
}

func newReadingsRepo(deps Dependencies) ReadingsRepo {
	return &readingsRepo{conn: deps.DBConn}
}

func (r *readingsRepo) Insert(ctx context.Context, reading Reading) error {
	const query = `
INSERT INTO power_readings (timestamp, home_w, grid_w, car_w, solar_w)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.conn.ExecCtx(ctx, query,
		reading.Timestamp, reading.HomeW, reading.GridW, reading.CarW, reading.SolarW); err != nil {
		return fmt.Errorf("readingsRepo.Insert exec: %w", err)
	}
	return nil
}

func (r *readingsRepo) Range(ctx context.Context, from, to int64) ([]Reading, error) {
	const query = `
SELECT id, timestamp, home_w, grid_w, car_w, solar_w
FROM power_readings
WHERE timestamp >= $1 AND timestamp <= $2
ORDER BY timestamp ASC, id ASC`

	var rows []readingRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("readingsRepo.Range query: %w", err)
	}

	readings := make([]Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, row.record())
	}
	return readings, nil
}

func (r *readingsRepo) Before(ctx context.Context, ts int64) (*Reading, error) {
	const query = `
SELECT id, timestamp, home_w, grid_w, car_w, solar_w
FROM power_readings
WHERE timestamp < $1
ORDER BY timestamp DESC, id DESC
LIMIT 1`
	return r.queryOne(ctx, "readingsRepo.Before", query, ts)
}

func (r *readingsRepo) After(ctx context.Context, ts int64) (*Reading, error) {
	const query = `
SELECT id, timestamp, home_w, grid_w, car_w, solar_w
FROM power_readings
WHERE timestamp > $1
ORDER BY timestamp ASC, id ASC
LIMIT 1`
	return r.queryOne(ctx, "readingsRepo.After", query, ts)
}

func (r *readingsRepo) EarliestTimestamp(ctx context.Context) (int64, error) {
	const query = `
SELECT timestamp
FROM power_readings
ORDER BY timestamp ASC, id ASC
LIMIT 1`

	var ts int64
	if err := r.conn.QueryRowCtx(ctx, &ts, query); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("readingsRepo.EarliestTimestamp query: %w", err)
	}
	return ts, nil
}

func (r *readingsRepo) queryOne(ctx context.Context, op, query string, args ...any) (*Reading, error) {
	var row readingRow
	if err := r.conn.QueryRowCtx(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s query: %w", op, err)
	}
	record := row.record()
	return &record, nil
}

type readingRow struct {
	ID        int64   `db:"id"`
	Timestamp int64   `db:"timestamp"`
	HomeW     float64 `db:"home_w"`
	GridW     float64 `db:"grid_w"`
	CarW      float64 `db:"car_w"`
	SolarW    float64 `db:"solar_w"`
}

func (row readingRow) record() Reading {
	return Reading{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		HomeW:     row.HomeW,
		GridW:     row.GridW,
		CarW:      row.CarW,
		SolarW:    row.SolarW,
	}
}
