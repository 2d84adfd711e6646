package repo

import (
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// ErrNotFound marks singleton lookups with no row, e.g. the checkpoint
// before the first aggregator run.
var ErrNotFound = sqlx.ErrNotFound

// Dependencies bundles the shared infrastructure required by repository
// implementations.
type Dependencies struct {
	DBConn sqlx.SqlConn
	// Location fixes calendar-day boundaries for the daily rollup.
	Location *time.Location
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	Readings   ReadingsRepo
	Buckets    BucketsRepo
	Checkpoint CheckpointRepo
}

// New constructs the repository set, validating required dependencies.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	return &Set{
		Readings:   newReadingsRepo(deps),
		Buckets:    newBucketsRepo(deps),
		Checkpoint: newCheckpointRepo(deps),
	}, nil
}
