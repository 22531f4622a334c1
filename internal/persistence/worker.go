package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TickSim/internal/observability"
)

// SampleWorker drains the sample channel and batch-writes to Postgres. It
// runs beside the single-threaded replay loop; the channel is buffered so a
// slow database briefly backpressures the replay instead of dropping rows.
type SampleWorker struct {
	writer       *ResultWriter
	inputChan    <-chan SampleRow
	batchSize    int
	flushTimeout time.Duration
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewSampleWorker(
	db *sql.DB,
	inputChan <-chan SampleRow,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *SampleWorker {
	return &SampleWorker{
		writer:       NewResultWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		log:          log,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming rows and flushes either
// when the batch is full or the flush timeout expires. Returns when the
// input channel is closed (all samples flushed) or ctx is cancelled.
func (sw *SampleWorker) Run(ctx context.Context) error {
	batch := make([]SampleRow, 0, sw.batchSize)

	timer := time.NewTimer(sw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := sw.flush(context.Background(), batch); err != nil {
					sw.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case row, ok := <-sw.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := sw.flush(context.Background(), batch); err != nil {
						sw.log.Error().Err(err).Msg("final flush failed")
						return err
					}
				}
				return nil
			}

			batch = append(batch, row)
			if len(batch) >= sw.batchSize {
				if err := sw.flushWithRetry(ctx, batch); err != nil {
					sw.log.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(sw.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := sw.flushWithRetry(ctx, batch); err != nil {
					sw.log.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(sw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or the context is cancelled,
// and on cancellation attempts one last flush with a background context.
func (sw *SampleWorker) flushWithRetry(ctx context.Context, batch []SampleRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			sw.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(batch)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := sw.flush(context.Background(), batch); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := sw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				sw.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if sw.metrics != nil {
			sw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (sw *SampleWorker) flush(ctx context.Context, batch []SampleRow) error {
	start := time.Now()

	tx, err := sw.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if sw.metrics != nil {
			sw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := sw.writer.WriteSampleBatch(ctx, tx, batch); err != nil {
		if sw.metrics != nil {
			sw.metrics.PersistErrors.WithLabelValues("write_samples").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if sw.metrics != nil {
			sw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if sw.metrics != nil {
		sw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		sw.metrics.PersistBatchSize.Observe(float64(len(batch)))
		sw.metrics.SamplesPersisted.Add(float64(len(batch)))
	}
	return nil
}

// Writer exposes the underlying writer so the host can record the run header
// after the series has drained.
func (sw *SampleWorker) Writer() *ResultWriter {
	return sw.writer
}
