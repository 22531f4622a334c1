// Package runner fans a session out to several strategies at once and checks
// that repeated runs are bit-for-bit reproducible.
package runner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"TickSim/internal/event"
	"TickSim/internal/observability"
	"TickSim/internal/sim"
	"TickSim/internal/strategy"
)

// Runner executes the configured strategies over one recorded session. Each
// strategy gets its own deep copy of the stream so concurrent runs never
// share mutable state.
type Runner struct {
	stream   *event.Stream
	registry *strategy.Registry
	simCfg   sim.Config

	// verifyRuns > 1 repeats each strategy and requires identical series
	// digests across repetitions.
	verifyRuns int

	log      zerolog.Logger
	metrics  *observability.Metrics
	onSample func(runID uuid.UUID, index int, s sim.Sample)
}

func New(stream *event.Stream, registry *strategy.Registry, simCfg sim.Config, verifyRuns int, log zerolog.Logger, metrics *observability.Metrics) *Runner {
	if verifyRuns < 1 {
		verifyRuns = 1
	}
	return &Runner{
		stream:     stream,
		registry:   registry,
		simCfg:     simCfg,
		verifyRuns: verifyRuns,
		log:        log,
		metrics:    metrics,
	}
}

// OnSample registers a hook passed through to every run's engine. Only the
// first repetition of each strategy streams samples; verification reruns are
// in-memory only.
func (r *Runner) OnSample(fn func(runID uuid.UUID, index int, s sim.Sample)) {
	r.onSample = fn
}

// RunAll executes every named strategy concurrently and returns the results
// in the same order as names. The first failed run cancels the rest.
func (r *Runner) RunAll(ctx context.Context, names []string) ([]*sim.Result, error) {
	results := make([]*sim.Result, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		strat, err := r.registry.Get(name)
		if err != nil {
			return nil, err
		}

		i := i
		g.Go(func() error {
			res, err := r.runOne(ctx, strat)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", strat.Name(), err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runOne executes one strategy, repeating the run when reproducibility
// verification is requested. Every repetition must produce the same series
// digest; a mismatch means hidden nondeterminism and fails the run.
func (r *Runner) runOne(ctx context.Context, strat strategy.Strategy) (*sim.Result, error) {
	runLog := r.log.With().Str("strategy", strat.Name()).Logger()

	bt := sim.New(r.stream.Clone(), strat, r.simCfg, runLog, r.metrics)
	if r.onSample != nil {
		bt.OnSample(r.onSample)
	}

	res, err := bt.Run(ctx)
	if err != nil {
		return nil, err
	}
	digest := sim.SeriesDigest(res.Samples)

	for rep := 1; rep < r.verifyRuns; rep++ {
		verify := sim.New(r.stream.Clone(), strat, r.simCfg, runLog, nil)
		vres, err := verify.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("verification rerun %d: %w", rep, err)
		}

		vdigest := sim.SeriesDigest(vres.Samples)
		if !bytes.Equal(digest[:], vdigest[:]) {
			return nil, fmt.Errorf("verification rerun %d: series digest mismatch (%x != %x)",
				rep, digest, vdigest)
		}
	}

	summary := res.Summarize()
	runLog.Info().
		Str("run_id", res.RunID.String()).
		Int("samples", summary.Samples).
		Int64("final_position", summary.FinalPosition).
		Float64("total_pnl", summary.TotalPnL).
		Float64("commission", summary.Commission).
		Msg("run complete")
	return res, nil
}
