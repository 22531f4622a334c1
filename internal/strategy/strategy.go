// Package strategy defines the contract the simulation engine invokes at
// every decision tick, plus the reference quoting policies shipped with the
// repository. Concrete policies live entirely outside the engine: the core
// only sees the interface.
package strategy

import (
	"time"

	"TickSim/internal/book"
	"TickSim/internal/event"
)

// Strategy is invoked once per decision tick. Decide receives the current
// signed position, the event history visible so far, the trader book it
// returned last tick, and the live market book. It returns the trader book to
// post for the coming interval and the delay until the next invocation.
//
// Decide must not retain or mutate its inputs: the engine diffs prev against
// the returned book for commission, so the returned book must be a fresh
// instance (or a clone of prev). Implementations should be deterministic in
// their inputs so backtests are reproducible.
type Strategy interface {
	Name() string
	Decide(position int64, history []event.MarketEvent, prev, market *book.PriceLevelBook) (*book.PriceLevelBook, time.Duration)
}
