// Package sim drives a recorded market event log through time, reconstructs
// the live order book, lets the strategy under test post its own quotes into
// the reconstructed market, matches trade prints against those quotes and
// accounts position, realized and unrealized PnL over the session.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TickSim/internal/book"
	"TickSim/internal/event"
	"TickSim/internal/observability"
	"TickSim/internal/strategy"
)

// Config is the recognized option surface of a single run.
type Config struct {
	// CommissionRate is charged per unit of trader-book churn,
	// as a fraction of notional.
	CommissionRate float64

	// MaxEvents bounds the session to at most this many log events after the
	// session start. Zero or negative means unbounded.
	MaxEvents int

	// StrongPriority grants the trader's quote the fill on a price tie with
	// resting market liquidity. Default: market liquidity wins ties.
	StrongPriority bool

	// DefaultDelay is used whenever a strategy returns a non-positive delay.
	DefaultDelay time.Duration

	// SessionLength is the distance from the session start's enclosing hour
	// to the session close.
	SessionLength time.Duration
}

// DefaultConfig mirrors the conventional derivatives-session parameters.
func DefaultConfig() Config {
	return Config{
		CommissionRate: 0.0002,
		MaxEvents:      1_000_000,
		DefaultDelay:   100 * time.Millisecond,
		SessionLength:  8*time.Hour + 45*time.Minute,
	}
}

// Backtester replays one event stream against one strategy. It is strictly
// single-threaded: every tick's strategy input depends on the cumulative
// effect of all prior ticks, so one run owns its stream, books and series
// outright. Run multiple strategies by giving each Backtester its own cloned
// stream.
type Backtester struct {
	cfg      Config
	stream   *event.Stream
	strat    strategy.Strategy
	log      zerolog.Logger
	metrics  *observability.Metrics
	progress *observability.ProgressReporter
	onSample func(runID uuid.UUID, index int, s Sample)

	market   *book.PriceLevelBook
	trader   *book.PriceLevelBook
	position int64
	realized float64
	lastMid  float64
	samples  []Sample
	result   *Result
}

// New builds a Backtester over the given stream and strategy. metrics may be
// nil.
func New(stream *event.Stream, strat strategy.Strategy, cfg Config, log zerolog.Logger, metrics *observability.Metrics) *Backtester {
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = DefaultConfig().DefaultDelay
	}
	if cfg.SessionLength <= 0 {
		cfg.SessionLength = DefaultConfig().SessionLength
	}
	return &Backtester{
		cfg:      cfg,
		stream:   stream,
		strat:    strat,
		log:      log,
		metrics:  metrics,
		progress: observability.NewProgressReporter(log),
	}
}

// OnSample registers a hook invoked for every appended sample, in order.
// Used by the host to stream samples into the persistence worker while the
// run is in flight.
func (bt *Backtester) OnSample(fn func(runID uuid.UUID, index int, s Sample)) {
	bt.onSample = fn
}

// Run replays the session and returns the accumulated series as the run's
// sole output. A run is one-shot: any fatal condition (book invariant
// violation, missing session boundary, cancellation) aborts it with no
// partial result and no retry.
func (bt *Backtester) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	res, err := bt.run(ctx)

	if bt.metrics != nil {
		bt.metrics.RunDuration.Observe(time.Since(started).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		bt.metrics.RunsCompleted.WithLabelValues(outcome).Inc()
	}
	return res, err
}

func (bt *Backtester) run(ctx context.Context) (*Result, error) {
	w, err := bt.discoverWindow()
	if err != nil {
		return nil, err
	}

	bt.market = book.New()
	bt.trader = book.New()
	bt.position = 0
	bt.realized = 0
	bt.samples = nil
	bt.result = &Result{
		RunID:    uuid.New(),
		Strategy: bt.strat.Name(),
		Window:   w,
	}

	// Seed the market book with everything before the session start: the
	// final snapshot plus the incremental events leading up to it.
	if err := bt.market.ApplyBatch(bt.stream.Range(0, w.StartIndex)); err != nil {
		return nil, fmt.Errorf("seed market book: %w", err)
	}

	mid, ok := bt.market.MidPrice()
	if !ok {
		return nil, &SeedError{
			BidLevels: bt.market.Depth(book.Bid),
			AskLevels: bt.market.Depth(book.Ask),
		}
	}
	bt.lastMid = mid

	bt.progress.Begin(w.Start, w.End)
	bt.appendSample(Sample{Time: w.Start, MidPrice: mid})

	// Initial decision at the session start; the returned delay sets the
	// first tick interval.
	strategyTime := w.Start
	idx, delay, err := bt.tick(strategyTime, w.StartIndex, w.EndIndex)
	if err != nil {
		return nil, err
	}

	for _, pi := range bt.stream.TradePrints() {
		if pi < w.StartIndex {
			continue
		}
		if pi > w.EndIndex {
			break
		}
		print := bt.stream.At(pi)
		if print.ExchTime.After(w.End) {
			break
		}

		// Catch the decision clock up to the print, one delay at a time.
		for print.ExchTime.Sub(strategyTime) > delay {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			strategyTime = strategyTime.Add(delay)
			idx, delay, err = bt.tick(strategyTime, idx, w.EndIndex)
			if err != nil {
				return nil, err
			}
			bt.progress.Observe(strategyTime)
		}

		out := matchPrint(bt.market, bt.trader, print, bt.cfg.StrongPriority)
		bt.position += out.PositionDelta
		bt.realized += out.Cash
		bt.result.Fills += out.Fills
		bt.result.FilledQuantity += out.FilledQuantity
		if out.Residual > 0 {
			bt.result.ResidualQuantity += out.Residual
			bt.result.ResidualPrints++
		}
		if bt.metrics != nil {
			bt.metrics.TradePrints.Inc()
			bt.metrics.TraderFills.Add(float64(out.Fills))
			bt.metrics.FilledQuantity.Add(float64(out.FilledQuantity))
			bt.metrics.ResidualQuantity.Add(float64(out.Residual))
			if out.Residual > 0 {
				bt.metrics.ResidualPrints.Inc()
			}
		}

		bt.appendSample(bt.snapshot(print.ExchTime))
	}

	bt.result.Samples = bt.samples
	bt.progress.Done(len(bt.samples))
	return bt.result, nil
}

// tick runs one scheduled decision: buffered events are applied to the market
// book, the strategy is invoked, commission is charged for the book delta,
// the fresh trader book is immediately crossed against the market, and a
// sample is recorded. Returns the advanced event cursor and the delay until
// the next tick.
func (bt *Backtester) tick(now time.Time, idx, endIdx int) (int, time.Duration, error) {
	idx, err := bt.applyUntil(now, idx, endIdx)
	if err != nil {
		return idx, 0, err
	}

	next, delay := bt.strat.Decide(bt.position, bt.stream.Prefix(idx), bt.trader, bt.market)
	if next == nil {
		next = book.New()
	}
	if delay <= 0 {
		delay = bt.cfg.DefaultDelay
	}

	c := commissionFor(bt.cfg.CommissionRate, bt.trader, next)
	bt.realized -= c
	bt.result.Commission += c
	if bt.metrics != nil {
		bt.metrics.CommissionCharged.Add(c)
	}

	// Immediate self-cross of the fresh book. Position moves; realized cash
	// does not (see finalize).
	bt.position += finalize(bt.market, next)
	bt.trader = next

	bt.appendSample(bt.snapshot(now))
	if bt.metrics != nil {
		bt.metrics.StrategyTicks.Inc()
	}
	return idx, delay, nil
}

// applyUntil feeds buffered events with exchange timestamps before t into the
// market book. It runs past t only to avoid leaving a transaction half
// applied: application stops at the first EndOfTransaction-flagged event at
// or after t.
func (bt *Backtester) applyUntil(t time.Time, idx, endIdx int) (int, error) {
	for idx <= endIdx {
		e := bt.stream.At(idx)
		if !e.ExchTime.Before(t) && e.Flags.Has(event.FlagEndOfTransaction) {
			break
		}
		if err := bt.market.Apply(e); err != nil {
			return idx, fmt.Errorf("apply event at log position %d (%s): %w",
				idx, e.ExchTime.Format(time.RFC3339Nano), err)
		}
		if bt.metrics != nil {
			bt.metrics.EventsApplied.Inc()
		}
		idx++
	}
	return idx, nil
}

// snapshot captures the current accounting state. When one market side is
// empty the last observed mid-price is carried forward rather than leaving
// the sample unpriced.
func (bt *Backtester) snapshot(now time.Time) Sample {
	mid, ok := bt.market.MidPrice()
	if !ok {
		mid = bt.lastMid
		if bt.metrics != nil {
			bt.metrics.OneSidedSamples.Inc()
		}
	} else {
		bt.lastMid = mid
	}
	return Sample{
		Time:          now,
		Position:      bt.position,
		RealizedPnL:   bt.realized,
		UnrealizedPnL: unrealizedPnL(bt.position, bt.market),
		MidPrice:      mid,
	}
}

func (bt *Backtester) appendSample(s Sample) {
	bt.samples = append(bt.samples, s)
	if bt.onSample != nil {
		bt.onSample(bt.result.RunID, len(bt.samples)-1, s)
	}
	if bt.metrics != nil {
		bt.metrics.SamplesAppended.Inc()
	}
}

// discoverWindow locates the trading session: the book is seeded through the
// last Snapshot-flagged event, the session starts at the first Add event
// after it, and closes at the start's enclosing hour plus SessionLength, or
// earlier when the MaxEvents bound cuts the log first.
func (bt *Backtester) discoverWindow() (Window, error) {
	n := bt.stream.Len()

	lastSnapshot := -1
	for i := 0; i < n; i++ {
		if bt.stream.At(i).Flags.Has(event.FlagSnapshot) {
			lastSnapshot = i
		}
	}
	if lastSnapshot < 0 {
		return Window{}, &MissingBoundaryError{Boundary: "snapshot"}
	}

	start := -1
	for i := lastSnapshot + 1; i < n; i++ {
		if bt.stream.At(i).Flags.Has(event.FlagAdd) {
			start = i
			break
		}
	}
	if start < 0 {
		return Window{}, &MissingBoundaryError{Boundary: "session start"}
	}

	startTime := bt.stream.At(start).ExchTime
	closeTime := startTime.Round(time.Hour).Add(bt.cfg.SessionLength)

	endIdx := n - 1
	if closeIdx := bt.stream.SearchTime(closeTime) - 1; closeIdx < endIdx {
		endIdx = closeIdx
	}
	if bt.cfg.MaxEvents > 0 && start+bt.cfg.MaxEvents-1 < endIdx {
		endIdx = start + bt.cfg.MaxEvents - 1
	}

	return Window{
		Start:      startTime,
		End:        bt.stream.At(endIdx).ExchTime,
		StartIndex: start,
		EndIndex:   endIdx,
	}, nil
}
