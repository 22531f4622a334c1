package sim

import (
	"TickSim/internal/book"
)

// commissionFor prices the churn of replacing the trader book prev with next:
// rate times the sum of absolute per-level quantity deltas on both sides.
// An unchanged book costs exactly zero.
func commissionFor(rate float64, prev, next *book.PriceLevelBook) float64 {
	return rate * float64(prev.Diff(next).AbsQuantity())
}

// unrealizedPnL marks the position to the market book by simulating a full
// liquidation: a long position is sold down the bid ladder from the best bid,
// a short is bought back up the ask ladder. The book is never mutated. A flat position is worth exactly zero regardless of book contents;
// liquidity running out leaves the unreachable remainder unvalued.
func unrealizedPnL(position int64, market *book.PriceLevelBook) float64 {
	if position == 0 {
		return 0
	}

	var cash int64
	if position > 0 {
		remaining := position
		for _, lvl := range market.Levels(book.Bid) {
			fill := min64(remaining, lvl.Quantity)
			cash += fill * lvl.Price
			remaining -= fill
			if remaining == 0 {
				break
			}
		}
	} else {
		remaining := -position
		for _, lvl := range market.Levels(book.Ask) {
			fill := min64(remaining, lvl.Quantity)
			cash -= fill * lvl.Price
			remaining -= fill
			if remaining == 0 {
				break
			}
		}
	}
	return float64(cash)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
