package strategy

import (
	"time"

	"TickSim/internal/book"
	"TickSim/internal/event"
)

// Hold reposts the previous trader book unchanged every tick. Useful as a
// zero-churn baseline: its commission is exactly zero after the first tick.
type Hold struct {
	Delay time.Duration
}

func (h *Hold) Name() string { return "hold" }

func (h *Hold) Decide(_ int64, _ []event.MarketEvent, prev, _ *book.PriceLevelBook) (*book.PriceLevelBook, time.Duration) {
	return prev.Clone(), h.Delay
}

// Spread quotes a fixed volume at the market's current best bid and best ask.
// It reposts both quotes from scratch each tick, so it pays commission
// whenever the touch moves.
type Spread struct {
	Volume int64
	Delay  time.Duration
}

func (s *Spread) Name() string { return "spread" }

func (s *Spread) Decide(_ int64, _ []event.MarketEvent, _, market *book.PriceLevelBook) (*book.PriceLevelBook, time.Duration) {
	nb := book.New()
	if bb, ok := market.BestBid(); ok {
		nb.Set(book.Bid, bb.Price, s.Volume)
	}
	if ba, ok := market.BestAsk(); ok {
		nb.Set(book.Ask, ba.Price, s.Volume)
	}
	return nb, s.Delay
}
