// Package book implements the two-sided price-level order book used for both
// the replayed market state and the simulated trader's resting quotes.
package book

import (
	"fmt"
	"sort"

	"TickSim/internal/event"
)

// Side selects one half of a book. The enum is deliberately explicit: events
// carry Buy/Sell flags and the mapping to a book side happens in exactly one
// place (sideOf), so the two halves can never be swapped by boolean
// arithmetic.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// SideOf maps an event's Buy/Sell flag to the book side its order rests on.
// For a trade print this is the side of the resting liquidity the trade
// consumed.
func SideOf(f event.Flags) Side {
	if f.Has(event.FlagBuy) {
		return Bid
	}
	return Ask
}

// Level is one resting price level.
type Level struct {
	Price    int64
	Quantity int64
}

// InvariantViolationError reports a mutation that would drive a price level
// negative. It indicates a corrupted or mis-ordered event stream and is fatal
// for the replay run that produced it.
type InvariantViolationError struct {
	Side      Side
	Price     int64
	Resulting int64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("book invariant violated: %s level %d would hold %d", e.Side, e.Price, e.Resulting)
}

// ladder is one side of the book: quantity per price plus the same prices in
// ascending order for best-of and in-priority iteration.
type ladder struct {
	qty    map[int64]int64
	prices []int64
}

func newLadder() ladder {
	return ladder{qty: make(map[int64]int64)}
}

func (l *ladder) search(price int64) int {
	return sort.Search(len(l.prices), func(i int) bool { return l.prices[i] >= price })
}

// set makes the level hold exactly qty, removing it when qty == 0.
// Callers must never pass a negative qty.
func (l *ladder) set(price, qty int64) {
	_, present := l.qty[price]
	switch {
	case qty == 0 && present:
		delete(l.qty, price)
		i := l.search(price)
		l.prices = append(l.prices[:i], l.prices[i+1:]...)
	case qty != 0:
		l.qty[price] = qty
		if !present {
			i := l.search(price)
			l.prices = append(l.prices, 0)
			copy(l.prices[i+1:], l.prices[i:])
			l.prices[i] = price
		}
	}
}

func (l *ladder) clone() ladder {
	c := ladder{
		qty:    make(map[int64]int64, len(l.qty)),
		prices: make([]int64, len(l.prices)),
	}
	for p, q := range l.qty {
		c.qty[p] = q
	}
	copy(c.prices, l.prices)
	return c
}

// PriceLevelBook is an aggregated resting-liquidity view of one instrument:
// price to outstanding quantity, per side. A present level always holds a
// positive quantity. Each book owns its storage; construct with New and never
// share ladders across book instances.
type PriceLevelBook struct {
	bid ladder
	ask ladder
}

func New() *PriceLevelBook {
	return &PriceLevelBook{bid: newLadder(), ask: newLadder()}
}

func (b *PriceLevelBook) side(s Side) *ladder {
	if s == Bid {
		return &b.bid
	}
	return &b.ask
}

// Apply mutates the book with a single market event. Add-flagged events add
// liquidity at the event's price on the event's own side; every other event
// (delete, trade print) removes it. Removal below zero returns an
// InvariantViolationError and leaves the book unchanged.
func (b *PriceLevelBook) Apply(e event.MarketEvent) error {
	s := SideOf(e.Flags)
	l := b.side(s)

	if e.Flags.Has(event.FlagAdd) {
		l.set(e.Price, l.qty[e.Price]+e.Amount)
		return nil
	}

	resulting := l.qty[e.Price] - e.Amount
	if resulting < 0 {
		return &InvariantViolationError{Side: s, Price: e.Price, Resulting: resulting}
	}
	l.set(e.Price, resulting)
	return nil
}

// ApplyBatch applies events in sequence order. It is not atomic: an invariant
// violation partway leaves the book partially applied, which is acceptable
// because the caller fails the whole run on that condition.
func (b *PriceLevelBook) ApplyBatch(events []event.MarketEvent) error {
	for _, e := range events {
		if err := b.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

// Set posts qty at price on side s, replacing whatever rested there.
// qty == 0 removes the level. Used by strategies to build quote books and by
// the matcher to consume trader liquidity.
func (b *PriceLevelBook) Set(s Side, price, qty int64) {
	b.side(s).set(price, qty)
}

// Quantity returns the resting quantity at price (0 if the level is absent).
func (b *PriceLevelBook) Quantity(s Side, price int64) int64 {
	return b.side(s).qty[price]
}

// BestBid returns the highest bid level, or ok == false when the bid side is
// empty. Absence of liquidity is an explicit presence test, never a sentinel
// value.
func (b *PriceLevelBook) BestBid() (Level, bool) {
	n := len(b.bid.prices)
	if n == 0 {
		return Level{}, false
	}
	p := b.bid.prices[n-1]
	return Level{Price: p, Quantity: b.bid.qty[p]}, true
}

// BestAsk returns the lowest ask level, or ok == false when the ask side is
// empty.
func (b *PriceLevelBook) BestAsk() (Level, bool) {
	if len(b.ask.prices) == 0 {
		return Level{}, false
	}
	p := b.ask.prices[0]
	return Level{Price: p, Quantity: b.ask.qty[p]}, true
}

// Best returns the best level of side s.
func (b *PriceLevelBook) Best(s Side) (Level, bool) {
	if s == Bid {
		return b.BestBid()
	}
	return b.BestAsk()
}

// Levels returns side s in price priority: bids from highest down, asks from
// lowest up. The slice is freshly allocated.
func (b *PriceLevelBook) Levels(s Side) []Level {
	l := b.side(s)
	out := make([]Level, 0, len(l.prices))
	if s == Ask {
		for _, p := range l.prices {
			out = append(out, Level{Price: p, Quantity: l.qty[p]})
		}
		return out
	}
	for i := len(l.prices) - 1; i >= 0; i-- {
		p := l.prices[i]
		out = append(out, Level{Price: p, Quantity: l.qty[p]})
	}
	return out
}

// Depth returns the number of levels on side s.
func (b *PriceLevelBook) Depth(s Side) int {
	return len(b.side(s).prices)
}

// Clone returns a deep value-copy. Mutating the clone never touches the
// original.
func (b *PriceLevelBook) Clone() *PriceLevelBook {
	return &PriceLevelBook{bid: b.bid.clone(), ask: b.ask.clone()}
}

// MidPrice returns (bestBid + bestAsk) / 2, or ok == false when either side
// holds no liquidity.
func (b *PriceLevelBook) MidPrice() (float64, bool) {
	bb, okB := b.BestBid()
	ba, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return float64(bb.Price+ba.Price) / 2, true
}
