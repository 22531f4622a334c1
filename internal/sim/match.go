package sim

import (
	"TickSim/internal/book"
	"TickSim/internal/event"
)

// The two matchers below consume market liquidity from a per-call walk over
// level snapshots, never from the live market book: the replayed log already
// carries the delete events for traded market liquidity, so mutating the
// market book here would double-count and corrupt subsequent replay. Only the
// trader book is mutated.

// finalize crosses a freshly posted trader book against the market book and
// returns the resulting position delta (positive when trader bids were
// lifted). Realized cash is deliberately not charged here: commission covers
// the posting cost and trade-print matching is the single source of truth for
// realized-cash bookkeeping.
func finalize(market, trader *book.PriceLevelBook) int64 {
	bought := crossSide(market.Levels(book.Ask), trader, book.Bid)
	sold := crossSide(market.Levels(book.Bid), trader, book.Ask)
	return bought - sold
}

// crossSide fills trader quotes on quoteSide against the given market levels
// (already in price priority) while the trader's best quote is at least as
// good as the level under the walk. Returns total quantity filled.
func crossSide(levels []book.Level, trader *book.PriceLevelBook, quoteSide book.Side) int64 {
	var filled int64
	for _, lvl := range levels {
		remaining := lvl.Quantity
		for remaining > 0 {
			q, ok := trader.Best(quoteSide)
			if !ok || !crosses(quoteSide, q.Price, lvl.Price) {
				return filled
			}
			fill := min64(remaining, q.Quantity)
			trader.Set(quoteSide, q.Price, q.Quantity-fill)
			filled += fill
			remaining -= fill
		}
	}
	return filled
}

// crosses reports whether a trader quote at quotePrice trades against an
// opposing level at levelPrice.
func crosses(quoteSide book.Side, quotePrice, levelPrice int64) bool {
	if quoteSide == book.Bid {
		return quotePrice >= levelPrice
	}
	return quotePrice <= levelPrice
}

// printOutcome is the effect of matching one trade print.
type printOutcome struct {
	Fills          int64
	FilledQuantity int64
	PositionDelta  int64
	Cash           float64
	Residual       int64
}

// matchPrint matches an executed market trade against the trader's resting
// quotes under price-time priority. The print's Buy/Sell flag names the
// resting side the trade consumed, so the trader's quotes on that same side
// compete with the market's levels for the print's quantity: a trader quote
// fills only while it is priced strictly better than the market level under
// the walk (or equal, when strongPriority grants the trader the tie). Market
// levels that outrank the trader absorb their share of the print instead.
// Whatever the walk cannot place within the print's price is dropped and
// reported as Residual; the print is effectively fill-or-forget.
func matchPrint(market, trader *book.PriceLevelBook, print event.MarketEvent, strongPriority bool) printOutcome {
	side := book.SideOf(print.Flags)
	levels := market.Levels(side)

	var out printOutcome
	remaining := print.Amount
	i := 0

	for remaining > 0 {
		quote, haveQuote := trader.Best(side)
		var level *book.Level
		if i < len(levels) {
			level = &levels[i]
		}

		quoteReachable := haveQuote && withinPrint(side, quote.Price, print.Price)
		levelReachable := level != nil && withinPrint(side, level.Price, print.Price)
		if !quoteReachable && !levelReachable {
			break
		}

		quoteWins := haveQuote &&
			(level == nil || outranks(side, quote.Price, level.Price) ||
				(quote.Price == level.Price && strongPriority))

		if quoteWins {
			fill := min64(remaining, quote.Quantity)
			trader.Set(side, quote.Price, quote.Quantity-fill)

			out.Fills++
			out.FilledQuantity += fill
			if side == book.Ask {
				// Trader's ask sold: position down, cash in.
				out.PositionDelta -= fill
				out.Cash += float64(fill * quote.Price)
			} else {
				out.PositionDelta += fill
				out.Cash -= float64(fill * quote.Price)
			}
			remaining -= fill
			continue
		}

		// Market liquidity outranks the trader: it absorbs this level's share.
		remaining -= level.Quantity
		i++
	}

	if remaining > 0 {
		out.Residual = remaining
	}
	return out
}

// withinPrint reports whether a price on the consumed side is reachable by a
// print at printPrice: asks at or below it, bids at or above it.
func withinPrint(side book.Side, price, printPrice int64) bool {
	if side == book.Ask {
		return price <= printPrice
	}
	return price >= printPrice
}

// outranks reports strict price priority of a over b on the given side.
func outranks(side book.Side, a, b int64) bool {
	if side == book.Ask {
		return a < b
	}
	return a > b
}
