package sim

import (
	"testing"
	"time"

	"TickSim/internal/book"
	"TickSim/internal/event"
)

func bookWith(bids, asks map[int64]int64) *book.PriceLevelBook {
	b := book.New()
	for price, qty := range bids {
		b.Set(book.Bid, price, qty)
	}
	for price, qty := range asks {
		b.Set(book.Ask, price, qty)
	}
	return b
}

func sellPrint(price, amount int64) event.MarketEvent {
	return event.MarketEvent{
		ExchTime:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		DealID:    1,
		DealPrice: price,
		Price:     price,
		Amount:    amount,
		Flags:     event.FlagSell,
	}
}

func buyPrint(price, amount int64) event.MarketEvent {
	e := sellPrint(price, amount)
	e.Flags = event.FlagBuy
	return e
}

// ============================================================================
// Test: finalize
// ============================================================================

func TestFinalize_NoCrossIsZero(t *testing.T) {
	market := bookWith(map[int64]int64{100: 5}, map[int64]int64{102: 5})
	trader := bookWith(map[int64]int64{100: 2}, map[int64]int64{102: 2})

	if got := finalize(market, trader); got != 0 {
		t.Errorf("position delta: got %d, want 0", got)
	}
	if got := trader.Quantity(book.Bid, 100); got != 2 {
		t.Errorf("trader bid after finalize: got %d, want 2", got)
	}
}

func TestFinalize_BidCrossesAsk(t *testing.T) {
	market := bookWith(map[int64]int64{100: 5}, map[int64]int64{102: 5})
	trader := bookWith(map[int64]int64{103: 4}, nil)

	if got := finalize(market, trader); got != 4 {
		t.Errorf("position delta: got %d, want 4", got)
	}
	if got := trader.Quantity(book.Bid, 103); got != 0 {
		t.Errorf("crossed quote must be consumed, got qty %d", got)
	}
	// Market liquidity is not mutated by the cross.
	if got := market.Quantity(book.Ask, 102); got != 5 {
		t.Errorf("market ask after finalize: got %d, want 5", got)
	}
}

func TestFinalize_AskCrossesBid(t *testing.T) {
	market := bookWith(map[int64]int64{100: 3}, map[int64]int64{102: 5})
	trader := bookWith(nil, map[int64]int64{99: 7})

	// Only the bid level's 3 contracts are there to sell into.
	if got := finalize(market, trader); got != -3 {
		t.Errorf("position delta: got %d, want -3", got)
	}
	if got := trader.Quantity(book.Ask, 99); got != 4 {
		t.Errorf("remaining trader ask: got %d, want 4", got)
	}
}

func TestFinalize_StopsAtNonCrossingLevel(t *testing.T) {
	market := bookWith(nil, map[int64]int64{102: 2, 105: 10})
	trader := bookWith(map[int64]int64{103: 6}, nil)

	// The 102 level crosses, the 105 level does not.
	if got := finalize(market, trader); got != 2 {
		t.Errorf("position delta: got %d, want 2", got)
	}
	if got := trader.Quantity(book.Bid, 103); got != 4 {
		t.Errorf("remaining trader bid: got %d, want 4", got)
	}
}

// ============================================================================
// Test: matchPrint
// ============================================================================

func TestMatchPrint_SellConsumesTraderAsk(t *testing.T) {
	market := bookWith(map[int64]int64{100: 5}, map[int64]int64{106: 5})
	trader := bookWith(nil, map[int64]int64{105: 4})

	out := matchPrint(market, trader, sellPrint(105, 4), false)

	if out.PositionDelta != -4 {
		t.Errorf("position delta: got %d, want -4", out.PositionDelta)
	}
	if want := float64(4 * 105); out.Cash != want {
		t.Errorf("cash: got %v, want %v", out.Cash, want)
	}
	if out.Fills != 1 || out.FilledQuantity != 4 {
		t.Errorf("fills: got %d/%d, want 1/4", out.Fills, out.FilledQuantity)
	}
	if out.Residual != 0 {
		t.Errorf("residual: got %d, want 0", out.Residual)
	}
	if got := trader.Quantity(book.Ask, 105); got != 0 {
		t.Errorf("filled quote must be removed, got qty %d", got)
	}
}

func TestMatchPrint_BuyConsumesTraderBid(t *testing.T) {
	market := bookWith(map[int64]int64{98: 5}, map[int64]int64{102: 5})
	trader := bookWith(map[int64]int64{99: 3}, nil)

	out := matchPrint(market, trader, buyPrint(99, 3), false)

	if out.PositionDelta != 3 {
		t.Errorf("position delta: got %d, want 3", out.PositionDelta)
	}
	if want := float64(-3 * 99); out.Cash != want {
		t.Errorf("cash: got %v, want %v", out.Cash, want)
	}
}

func TestMatchPrint_MarketOutranksTrader(t *testing.T) {
	// The market ask at 104 is priced better than the trader's 105 and
	// absorbs its share of the print before the trader fills.
	market := bookWith(nil, map[int64]int64{104: 3, 106: 5})
	trader := bookWith(nil, map[int64]int64{105: 10})

	out := matchPrint(market, trader, sellPrint(105, 5), false)

	if out.FilledQuantity != 2 {
		t.Errorf("filled quantity: got %d, want 2", out.FilledQuantity)
	}
	if got := trader.Quantity(book.Ask, 105); got != 8 {
		t.Errorf("remaining trader ask: got %d, want 8", got)
	}
	// The replay must not consume live market liquidity.
	if got := market.Quantity(book.Ask, 104); got != 3 {
		t.Errorf("market ask after match: got %d, want 3", got)
	}
}

func TestMatchPrint_TieLosesWithoutStrongPriority(t *testing.T) {
	market := bookWith(nil, map[int64]int64{105: 4})
	trader := bookWith(nil, map[int64]int64{105: 4})

	out := matchPrint(market, trader, sellPrint(105, 4), false)

	if out.FilledQuantity != 0 {
		t.Errorf("filled quantity: got %d, want 0", out.FilledQuantity)
	}
}

func TestMatchPrint_TieWinsWithStrongPriority(t *testing.T) {
	market := bookWith(nil, map[int64]int64{105: 4})
	trader := bookWith(nil, map[int64]int64{105: 4})

	out := matchPrint(market, trader, sellPrint(105, 4), true)

	if out.FilledQuantity != 4 {
		t.Errorf("filled quantity: got %d, want 4", out.FilledQuantity)
	}
	if out.PositionDelta != -4 {
		t.Errorf("position delta: got %d, want -4", out.PositionDelta)
	}
}

func TestMatchPrint_ResidualWhenNothingReachable(t *testing.T) {
	// Neither the trader's 107 ask nor the market's 108 ask is within a
	// print at 105; the remainder is forgotten, never queued.
	market := bookWith(nil, map[int64]int64{108: 9})
	trader := bookWith(nil, map[int64]int64{107: 9})

	out := matchPrint(market, trader, sellPrint(105, 6), false)

	if out.Residual != 6 {
		t.Errorf("residual: got %d, want 6", out.Residual)
	}
	if out.FilledQuantity != 0 || out.Fills != 0 {
		t.Errorf("unexpected fills: %d/%d", out.Fills, out.FilledQuantity)
	}
}

func TestMatchPrint_PartialResidual(t *testing.T) {
	market := bookWith(nil, map[int64]int64{110: 5})
	trader := bookWith(nil, map[int64]int64{104: 2})

	out := matchPrint(market, trader, sellPrint(105, 6), false)

	if out.FilledQuantity != 2 {
		t.Errorf("filled quantity: got %d, want 2", out.FilledQuantity)
	}
	if out.Residual != 4 {
		t.Errorf("residual: got %d, want 4", out.Residual)
	}
}
