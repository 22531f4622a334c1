package event_test

import (
	"testing"
	"time"

	"TickSim/internal/event"
)

func streamAt(times ...int) *event.Stream {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	events := make([]event.MarketEvent, len(times))
	for i, s := range times {
		events[i] = event.MarketEvent{ExchTime: base.Add(time.Duration(s) * time.Second)}
	}
	return event.NewStream(events)
}

// ============================================================================
// Test: positional and time access
// ============================================================================

func TestSearchTime(t *testing.T) {
	s := streamAt(0, 10, 20, 30)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if got := s.SearchTime(base.Add(10 * time.Second)); got != 1 {
		t.Errorf("exact hit: got %d, want 1", got)
	}
	if got := s.SearchTime(base.Add(15 * time.Second)); got != 2 {
		t.Errorf("between events: got %d, want 2", got)
	}
	if got := s.SearchTime(base.Add(time.Hour)); got != s.Len() {
		t.Errorf("past end: got %d, want %d", got, s.Len())
	}
}

func TestPrefixAndRange(t *testing.T) {
	s := streamAt(0, 10, 20, 30)

	if got := len(s.Prefix(2)); got != 2 {
		t.Errorf("prefix: got %d events, want 2", got)
	}
	if got := len(s.Range(1, 3)); got != 2 {
		t.Errorf("range: got %d events, want 2", got)
	}
}

func TestClone_Independent(t *testing.T) {
	s := streamAt(0, 10)
	c := s.Clone()

	if c.Len() != s.Len() {
		t.Fatalf("clone length: got %d, want %d", c.Len(), s.Len())
	}
	if !c.At(1).ExchTime.Equal(s.At(1).ExchTime) {
		t.Error("clone content differs")
	}
}

// ============================================================================
// Test: TradePrints
// ============================================================================

func TestTradePrints_DedupsByTimestamp(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := event.NewStream([]event.MarketEvent{
		{ExchTime: base},
		{ExchTime: base.Add(time.Second), DealID: 1, DealPrice: 100},
		{ExchTime: base.Add(time.Second), DealID: 2, DealPrice: 100}, // echo of same execution
		{ExchTime: base.Add(2 * time.Second)},
		{ExchTime: base.Add(3 * time.Second), DealID: 3, DealPrice: 101},
	})

	prints := s.TradePrints()
	if len(prints) != 2 {
		t.Fatalf("prints: got %v, want 2 positions", prints)
	}
	if prints[0] != 1 || prints[1] != 4 {
		t.Errorf("print positions: got %v, want [1 4]", prints)
	}
}

func TestTradePrints_KeepsFirstOfEchoGroup(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := event.NewStream([]event.MarketEvent{
		{ExchTime: base, DealID: 1, DealPrice: 100, Amount: 7},
		{ExchTime: base, DealID: 2, DealPrice: 100, Amount: 3},
	})

	prints := s.TradePrints()
	if len(prints) != 1 || s.At(prints[0]).Amount != 7 {
		t.Errorf("expected the first echo kept, got %v", prints)
	}
}
