package book

// Delta is a signed per-price quantity difference between two books.
// Produced by Diff and consumed by ApplyDelta; the absolute sum of a delta is
// the churn the commission model charges for.
type Delta struct {
	Bid map[int64]int64
	Ask map[int64]int64
}

func (d Delta) side(s Side) map[int64]int64 {
	if s == Bid {
		return d.Bid
	}
	return d.Ask
}

// AbsQuantity returns the sum of absolute per-level quantity changes across
// both sides.
func (d Delta) AbsQuantity() int64 {
	var acc int64
	for _, m := range []map[int64]int64{d.Bid, d.Ask} {
		for _, q := range m {
			if q < 0 {
				q = -q
			}
			acc += q
		}
	}
	return acc
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return len(d.Bid) == 0 && len(d.Ask) == 0
}

// Diff computes next minus b: the delta that turns b into next when applied.
// Zero differences are omitted.
func (b *PriceLevelBook) Diff(next *PriceLevelBook) Delta {
	d := Delta{Bid: make(map[int64]int64), Ask: make(map[int64]int64)}
	for _, s := range []Side{Bid, Ask} {
		from := b.side(s)
		to := next.side(s)
		m := d.side(s)
		for p, q := range to.qty {
			if diff := q - from.qty[p]; diff != 0 {
				m[p] = diff
			}
		}
		for p, q := range from.qty {
			if _, seen := to.qty[p]; !seen {
				m[p] = -q
			}
		}
	}
	return d
}

// ApplyDelta mutates b by the signed per-price changes in d. Applying
// a.Diff(b) to a reproduces b exactly. A change that would drive a level
// negative returns an InvariantViolationError with the book partially
// applied, as with ApplyBatch.
func (b *PriceLevelBook) ApplyDelta(d Delta) error {
	for _, s := range []Side{Bid, Ask} {
		l := b.side(s)
		for p, diff := range d.side(s) {
			resulting := l.qty[p] + diff
			if resulting < 0 {
				return &InvariantViolationError{Side: s, Price: p, Resulting: resulting}
			}
			l.set(p, resulting)
		}
	}
	return nil
}
