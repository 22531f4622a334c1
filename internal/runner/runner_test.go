package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TickSim/internal/event"
	"TickSim/internal/runner"
	"TickSim/internal/sim"
	"TickSim/internal/strategy"
)

func sessionStream() *event.Stream {
	open := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	pre := open.Add(-2 * time.Second)
	return event.NewStream([]event.MarketEvent{
		{ExchTime: pre, Price: 100, Amount: 5,
			Flags: event.FlagAdd | event.FlagSnapshot | event.FlagBuy},
		{ExchTime: pre, Price: 102, Amount: 5,
			Flags: event.FlagAdd | event.FlagSnapshot | event.FlagSell | event.FlagEndOfTransaction},
		{ExchTime: open, Price: 100, Amount: 1,
			Flags: event.FlagAdd | event.FlagBuy | event.FlagEndOfTransaction},
		{ExchTime: open.Add(2 * time.Second), Price: 102, Amount: 1,
			DealID: 1, DealPrice: 102,
			Flags: event.FlagSell | event.FlagEndOfTransaction},
	})
}

func testRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register("hold", &strategy.Hold{Delay: time.Second})
	r.Register("spread", &strategy.Spread{Volume: 1, Delay: time.Second})
	return r
}

func testConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.DefaultDelay = time.Second
	return cfg
}

// ============================================================================
// Test: fan-out
// ============================================================================

func TestRunAll_ResultsMatchNameOrder(t *testing.T) {
	r := runner.New(sessionStream(), testRegistry(), testConfig(), 1, zerolog.Nop(), nil)

	results, err := r.RunAll(context.Background(), []string{"spread", "hold"})
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].Strategy != "spread" || results[1].Strategy != "hold" {
		t.Errorf("result order: got [%s %s], want [spread hold]",
			results[0].Strategy, results[1].Strategy)
	}
}

func TestRunAll_UnknownStrategy_Fails(t *testing.T) {
	r := runner.New(sessionStream(), testRegistry(), testConfig(), 1, zerolog.Nop(), nil)

	if _, err := r.RunAll(context.Background(), []string{"hold", "momentum"}); err == nil {
		t.Fatal("expected an error for an unregistered strategy")
	}
}

// ============================================================================
// Test: reproducibility verification
// ============================================================================

func TestRunAll_VerificationPassesForDeterministicStrategies(t *testing.T) {
	r := runner.New(sessionStream(), testRegistry(), testConfig(), 3, zerolog.Nop(), nil)

	if _, err := r.RunAll(context.Background(), []string{"hold", "spread"}); err != nil {
		t.Fatalf("verified run: %v", err)
	}
}

func TestRunAll_OnSampleStreamsFirstRepetitionOnly(t *testing.T) {
	r := runner.New(sessionStream(), testRegistry(), testConfig(), 2, zerolog.Nop(), nil)

	var streamed int
	runIDs := make(map[uuid.UUID]bool)
	r.OnSample(func(runID uuid.UUID, _ int, _ sim.Sample) {
		streamed++
		runIDs[runID] = true
	})

	results, err := r.RunAll(context.Background(), []string{"hold"})
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if streamed != len(results[0].Samples) {
		t.Errorf("streamed samples: got %d, want %d", streamed, len(results[0].Samples))
	}
	if len(runIDs) != 1 || !runIDs[results[0].RunID] {
		t.Errorf("streamed run ids: got %v, want only %s", runIDs, results[0].RunID)
	}
}
