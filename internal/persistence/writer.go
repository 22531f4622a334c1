package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TickSim/internal/sim"
)

// ResultWriter writes runs and their sample series to Postgres using
// multi-row INSERT. Portable and fast enough for session-sized batches;
// switch to pgx CopyFrom if exports ever outgrow it.
type ResultWriter struct {
	db *sql.DB
}

// SampleRow is one row of backtest.samples.
type SampleRow struct {
	RunID         uuid.UUID
	Index         int
	Time          time.Time
	Position      int64
	RealizedPnL   float64
	UnrealizedPnL float64
	MidPrice      float64
}

func NewResultWriter(db *sql.DB) *ResultWriter {
	return &ResultWriter{db: db}
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WriteRun inserts the run's header row. Re-inserting the same run_id is a
// no-op, so a retried flush stays idempotent.
func (w *ResultWriter) WriteRun(ctx context.Context, ex execer, res *sim.Result) error {
	summary := res.Summarize()
	digest := sim.SeriesDigest(res.Samples)

	_, err := ex.ExecContext(ctx, `
		INSERT INTO backtest.runs
			(run_id, strategy, session_start, session_end, samples,
			 final_position, realized_pnl, unrealized_pnl, total_pnl, max_drawdown,
			 commission, fills, filled_quantity, residual_quantity, residual_prints,
			 series_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_id) DO NOTHING`,
		res.RunID, res.Strategy, res.Window.Start, res.Window.End, summary.Samples,
		summary.FinalPosition, summary.RealizedPnL, summary.UnrealizedPnL,
		summary.TotalPnL, summary.MaxDrawdown,
		summary.Commission, summary.Fills, summary.FilledQuantity,
		summary.ResidualQuantity, res.ResidualPrints,
		digest[:],
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}
	return nil
}

// WriteSampleBatch writes a batch of sample rows using multi-row INSERT.
func (w *ResultWriter) WriteSampleBatch(ctx context.Context, ex execer, rows []SampleRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO backtest.samples
		(run_id, sample_index, sample_time, position, realized_pnl, unrealized_pnl, mid_price)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)

	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.RunID, r.Index, r.Time, r.Position,
			r.RealizedPnL, r.UnrealizedPnL, r.MidPrice,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (run_id, sample_index) DO NOTHING" // idempotent retries

	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d samples: %w", len(rows), err)
	}
	return nil
}

// DB exposes the underlying handle for transaction control.
func (w *ResultWriter) DB() *sql.DB {
	return w.db
}
