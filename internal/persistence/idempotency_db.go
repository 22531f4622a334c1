package persistence

import (
	"context"
	"database/sql"
	"time"
)

// RunDedupChecker detects re-submissions of an identical run: same strategy,
// same session, same series digest. Each run gets a fresh run_id, so without
// this check repeated invocations over the same recording would pile up
// duplicate rows.
type RunDedupChecker struct {
	db *sql.DB
}

func NewRunDedupChecker(db *sql.DB) *RunDedupChecker {
	return &RunDedupChecker{db: db}
}

// IsDuplicate reports whether an identical run is already stored.
func (c *RunDedupChecker) IsDuplicate(strategy string, sessionStart time.Time, digest []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := c.db.QueryRowContext(ctx, `
        SELECT 1
        FROM backtest.runs
        WHERE strategy = $1 AND session_start = $2 AND series_digest = $3
        LIMIT 1
    `, strategy, sessionStart, digest).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
