package sim

import (
	"time"

	"github.com/google/uuid"
)

// Sample is one point of the run's output series: the trader's state at a
// decision tick or immediately after a trade-print match. Samples are
// append-only; each carries the cumulative state forward.
type Sample struct {
	Time          time.Time
	Position      int64
	RealizedPnL   float64
	UnrealizedPnL float64
	MidPrice      float64
}

// Window is the discovered trading session.
type Window struct {
	Start      time.Time
	End        time.Time
	StartIndex int // log position of the first session event
	EndIndex   int // log position of the last session event
}

// Result is the sole output of one simulation run.
type Result struct {
	RunID    uuid.UUID
	Strategy string
	Window   Window
	Samples  []Sample

	// Matching statistics, observable per the fill-or-forget convention.
	Fills            int64
	FilledQuantity   int64
	ResidualQuantity int64
	ResidualPrints   int64
	Commission       float64
}

// Summary condenses a result into headline figures.
type Summary struct {
	Strategy         string
	Samples          int
	FinalPosition    int64
	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalPnL         float64
	MaxDrawdown      float64
	Commission       float64
	Fills            int64
	FilledQuantity   int64
	ResidualQuantity int64
}

// Summarize derives the headline figures of the run. Drawdown is measured on
// the equity curve realized + unrealized, as a positive number of ticks.
func (r *Result) Summarize() Summary {
	s := Summary{
		Strategy:         r.Strategy,
		Samples:          len(r.Samples),
		Commission:       r.Commission,
		Fills:            r.Fills,
		FilledQuantity:   r.FilledQuantity,
		ResidualQuantity: r.ResidualQuantity,
	}
	if len(r.Samples) == 0 {
		return s
	}

	last := r.Samples[len(r.Samples)-1]
	s.FinalPosition = last.Position
	s.RealizedPnL = last.RealizedPnL
	s.UnrealizedPnL = last.UnrealizedPnL
	s.TotalPnL = last.RealizedPnL + last.UnrealizedPnL

	peak := r.Samples[0].RealizedPnL + r.Samples[0].UnrealizedPnL
	for _, smp := range r.Samples {
		equity := smp.RealizedPnL + smp.UnrealizedPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	return s
}
