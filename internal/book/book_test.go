package book_test

import (
	"errors"
	"testing"

	"TickSim/internal/book"
	"TickSim/internal/event"
)

func addEvent(flags event.Flags, price, amount int64) event.MarketEvent {
	return event.MarketEvent{Price: price, Amount: amount, Flags: flags}
}

// ============================================================================
// Test: Apply
// ============================================================================

func TestApply_AddAccumulates(t *testing.T) {
	b := book.New()

	if err := b.Apply(addEvent(event.FlagAdd|event.FlagBuy, 100, 5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.Apply(addEvent(event.FlagAdd|event.FlagBuy, 100, 3)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := b.Quantity(book.Bid, 100); got != 8 {
		t.Errorf("bid@100: got %d, want 8", got)
	}
}

func TestApply_DeleteRemovesExactly(t *testing.T) {
	b := book.New()
	b.Set(book.Ask, 105, 10)

	if err := b.Apply(addEvent(event.FlagDelete|event.FlagSell, 105, 4)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := b.Quantity(book.Ask, 105); got != 6 {
		t.Errorf("ask@105: got %d, want 6", got)
	}

	if err := b.Apply(addEvent(event.FlagDelete|event.FlagSell, 105, 6)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := b.Depth(book.Ask); got != 0 {
		t.Errorf("emptied level must vanish, depth=%d", got)
	}
}

func TestApply_NegativeQuantityRejected(t *testing.T) {
	b := book.New()
	b.Set(book.Bid, 100, 2)

	err := b.Apply(addEvent(event.FlagDelete|event.FlagBuy, 100, 5))
	if err == nil {
		t.Fatal("expected invariant violation")
	}

	var iv *book.InvariantViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected InvariantViolationError, got %T", err)
	}
	if iv.Resulting != -3 {
		t.Errorf("resulting: got %d, want -3", iv.Resulting)
	}

	// The failed event must leave the book untouched.
	if got := b.Quantity(book.Bid, 100); got != 2 {
		t.Errorf("bid@100 after failed apply: got %d, want 2", got)
	}
}

func TestApply_SidesAreIndependent(t *testing.T) {
	b := book.New()
	b.Set(book.Bid, 100, 5)
	b.Set(book.Ask, 100, 7)

	if got := b.Quantity(book.Bid, 100); got != 5 {
		t.Errorf("bid@100: got %d, want 5", got)
	}
	if got := b.Quantity(book.Ask, 100); got != 7 {
		t.Errorf("ask@100: got %d, want 7", got)
	}
}

// ============================================================================
// Test: Best / Levels / MidPrice
// ============================================================================

func TestBest_BidIsHighestAskIsLowest(t *testing.T) {
	b := book.New()
	b.Set(book.Bid, 98, 1)
	b.Set(book.Bid, 100, 2)
	b.Set(book.Ask, 105, 3)
	b.Set(book.Ask, 103, 4)

	bb, ok := b.BestBid()
	if !ok || bb.Price != 100 || bb.Quantity != 2 {
		t.Errorf("best bid: got %+v ok=%v, want 100x2", bb, ok)
	}

	ba, ok := b.BestAsk()
	if !ok || ba.Price != 103 || ba.Quantity != 4 {
		t.Errorf("best ask: got %+v ok=%v, want 103x4", ba, ok)
	}
}

func TestLevels_BestFirst(t *testing.T) {
	b := book.New()
	b.Set(book.Bid, 98, 1)
	b.Set(book.Bid, 100, 1)
	b.Set(book.Bid, 99, 1)

	levels := b.Levels(book.Bid)
	if len(levels) != 3 {
		t.Fatalf("levels: got %d, want 3", len(levels))
	}
	if levels[0].Price != 100 || levels[1].Price != 99 || levels[2].Price != 98 {
		t.Errorf("bid levels not best-first: %+v", levels)
	}

	b.Set(book.Ask, 105, 1)
	b.Set(book.Ask, 103, 1)
	asks := b.Levels(book.Ask)
	if asks[0].Price != 103 {
		t.Errorf("ask levels not best-first: %+v", asks)
	}
}

func TestMidPrice(t *testing.T) {
	b := book.New()

	if _, ok := b.MidPrice(); ok {
		t.Error("empty book must not have a mid price")
	}

	b.Set(book.Bid, 100, 1)
	if _, ok := b.MidPrice(); ok {
		t.Error("one-sided book must not have a mid price")
	}

	b.Set(book.Ask, 103, 1)
	mid, ok := b.MidPrice()
	if !ok || mid != 101.5 {
		t.Errorf("mid: got %v ok=%v, want 101.5", mid, ok)
	}
}

// ============================================================================
// Test: Clone / SideOf
// ============================================================================

func TestClone_Independent(t *testing.T) {
	b := book.New()
	b.Set(book.Bid, 100, 5)

	c := b.Clone()
	c.Set(book.Bid, 100, 9)
	c.Set(book.Ask, 110, 1)

	if got := b.Quantity(book.Bid, 100); got != 5 {
		t.Errorf("original mutated through clone: bid@100=%d", got)
	}
	if got := b.Depth(book.Ask); got != 0 {
		t.Errorf("original gained ask levels through clone: depth=%d", got)
	}
}

func TestSideOf(t *testing.T) {
	if got := book.SideOf(event.FlagAdd | event.FlagBuy); got != book.Bid {
		t.Errorf("Buy flag: got %v, want Bid", got)
	}
	if got := book.SideOf(event.FlagAdd | event.FlagSell); got != book.Ask {
		t.Errorf("Sell flag: got %v, want Ask", got)
	}
	if got := book.Bid.Opposite(); got != book.Ask {
		t.Errorf("opposite of Bid: got %v", got)
	}
}
