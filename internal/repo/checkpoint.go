package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// CheckpointStatus reports the outcome of the latest aggregation run.
type CheckpointStatus string

const (
	CheckpointRunning   CheckpointStatus = "running"
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointError     CheckpointStatus = "error"
)

// ErrCheckpointConflict means another worker advanced the checkpoint
// between our read and write. The caller should drop its batch and
// re-read.
var ErrCheckpointConflict = errors.New("repo: checkpoint advanced concurrently")

// Checkpoint is the single-row cursor of the aggregation job. Every
// minute up to and including LastProcessed has been bucketed; anything
// later only exists as raw readings.
type Checkpoint struct {
	LastProcessed int64
	LastRunAt     int64
	Status        CheckpointStatus
}

// CheckpointRepo persists the aggregation cursor.
type CheckpointRepo interface {
	// Load returns the checkpoint, ErrNotFound before the first Seed.
	Load(ctx context.Context) (Checkpoint, error)
	// Seed inserts the initial checkpoint with status running. When a
	// concurrent worker seeded first, the stored row wins and is
	// returned unchanged.
	Seed(ctx context.Context, lastProcessed, runAt int64) (Checkpoint, error)
	// Advance moves the cursor from expected to next. Returns
	// ErrCheckpointConflict when the stored cursor no longer equals
	// expected.
	Advance(ctx context.Context, expected, next, runAt int64, status CheckpointStatus) error
	// MarkStatus rewrites status and last_run_at without moving the
	// cursor.
	MarkStatus(ctx context.Context, status CheckpointStatus, runAt int64) error
}

const checkpointID = 1

type checkpointRepo struct {
	conn sqlx.SqlConn
}

func newCheckpointRepo(deps Dependencies) CheckpointRepo {
	return &checkpointRepo{conn: deps.DBConn}
}

func (r *checkpointRepo) Load(ctx context.Context) (Checkpoint, error) {
	const query = `
SELECT last_processed_timestamp, last_run_at, status
FROM aggregation_checkpoint
WHERE id = $1`

	var row checkpointRow
	if err := r.conn.QueryRowCtx(ctx, &row, query, checkpointID); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, fmt.Errorf("checkpointRepo.Load query: %w", err)
	}
	return row.record(), nil
}

func (r *checkpointRepo) Seed(ctx context.Context, lastProcessed, runAt int64) (Checkpoint, error) {
	const query = `
INSERT INTO aggregation_checkpoint (id, last_processed_timestamp, last_run_at, status)
VALUES ($1, $2, $3, $4)`

	_, err := r.conn.ExecCtx(ctx, query, checkpointID, lastProcessed, runAt, string(CheckpointRunning))
	if err != nil {
		if isUniqueViolation(err) {
			return r.Load(ctx)
		}
		return Checkpoint{}, fmt.Errorf("checkpointRepo.Seed exec: %w", err)
	}
	return Checkpoint{LastProcessed: lastProcessed, LastRunAt: runAt, Status: CheckpointRunning}, nil
}

func (r *checkpointRepo) Advance(ctx context.Context, expected, next, runAt int64, status CheckpointStatus) error {
	const query = `
UPDATE aggregation_checkpoint
SET last_processed_timestamp = $1, last_run_at = $2, status = $3
WHERE id = $4 AND last_processed_timestamp = $5`

	result, err := r.conn.ExecCtx(ctx, query, next, runAt, string(status), checkpointID, expected)
	if err != nil {
		return fmt.Errorf("checkpointRepo.Advance exec: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checkpointRepo.Advance rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCheckpointConflict
	}
	return nil
}

func (r *checkpointRepo) MarkStatus(ctx context.Context, status CheckpointStatus, runAt int64) error {
	const query = `
UPDATE aggregation_checkpoint
SET status = $1, last_run_at = $2
WHERE id = $3`

	if _, err := r.conn.ExecCtx(ctx, query, string(status), runAt, checkpointID); err != nil {
		return fmt.Errorf("checkpointRepo.MarkStatus exec: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pq.Error)
	return ok && pgErr.Code == "23505"
}

type checkpointRow struct {
	LastProcessed int64  `db:"last_processed_timestamp"`
	LastRunAt     int64  `db:"last_run_at"`
	Status        string `db:"status"`
}

func (row checkpointRow) record() Checkpoint {
	return Checkpoint{
		LastProcessed: row.LastProcessed,
		LastRunAt:     row.LastRunAt,
		Status:        CheckpointStatus(row.Status),
	}
}
