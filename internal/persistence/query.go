package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunReader loads stored runs and their series back out of Postgres.
// Downstream consumers get headline figures over NATS and come here for the
// full series by run_id.
type RunReader struct {
	db *sql.DB
}

// RunRecord is one row of backtest.runs.
type RunRecord struct {
	RunID            uuid.UUID
	Strategy         string
	SessionStart     time.Time
	SessionEnd       time.Time
	Samples          int
	FinalPosition    int64
	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalPnL         float64
	MaxDrawdown      float64
	Commission       float64
	Fills            int64
	FilledQuantity   int64
	ResidualQuantity int64
	ResidualPrints   int64
	SeriesDigest     []byte
	CreatedAt        time.Time
}

func NewRunReader(db *sql.DB) *RunReader {
	return &RunReader{db: db}
}

const runColumns = `run_id, strategy, session_start, session_end, samples,
	final_position, realized_pnl, unrealized_pnl, total_pnl, max_drawdown,
	commission, fills, filled_quantity, residual_quantity, residual_prints,
	series_digest, created_at`

func scanRun(row interface{ Scan(...interface{}) error }) (*RunRecord, error) {
	var r RunRecord
	err := row.Scan(
		&r.RunID, &r.Strategy, &r.SessionStart, &r.SessionEnd, &r.Samples,
		&r.FinalPosition, &r.RealizedPnL, &r.UnrealizedPnL, &r.TotalPnL, &r.MaxDrawdown,
		&r.Commission, &r.Fills, &r.FilledQuantity, &r.ResidualQuantity, &r.ResidualPrints,
		&r.SeriesDigest, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recent stored run for the strategy, or nil when
// none exists.
func (r *RunReader) LatestRun(ctx context.Context, strategy string) (*RunRecord, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM backtest.runs WHERE strategy = $1 ORDER BY created_at DESC LIMIT 1`,
		runColumns,
	), strategy)

	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run for %s: %w", strategy, err)
	}
	return rec, nil
}

// ListRuns returns up to limit recent runs for the strategy, newest first.
func (r *RunReader) ListRuns(ctx context.Context, strategy string, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM backtest.runs WHERE strategy = $1 ORDER BY created_at DESC LIMIT $2`,
		runColumns,
	), strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", strategy, err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// LoadSamples returns the run's full series in sample order.
func (r *RunReader) LoadSamples(ctx context.Context, runID uuid.UUID) ([]SampleRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, sample_index, sample_time, position, realized_pnl, unrealized_pnl, mid_price
		FROM backtest.samples
		WHERE run_id = $1
		ORDER BY sample_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("load samples for %s: %w", runID, err)
	}
	defer rows.Close()

	var samples []SampleRow
	for rows.Next() {
		var s SampleRow
		if err := rows.Scan(&s.RunID, &s.Index, &s.Time, &s.Position,
			&s.RealizedPnL, &s.UnrealizedPnL, &s.MidPrice); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
