package observability

import (
	"time"

	"github.com/rs/zerolog"
)

// ProgressReporter logs replay progress in whole-percent steps of simulated
// session time. One reporter belongs to one run; it is not thread-safe.
type ProgressReporter struct {
	log     zerolog.Logger
	start   time.Time
	end     time.Time
	total   time.Duration
	lastPct float64
	began   time.Time
}

func NewProgressReporter(log zerolog.Logger) *ProgressReporter {
	return &ProgressReporter{log: log}
}

// Begin announces the session window and arms the reporter.
func (p *ProgressReporter) Begin(start, end time.Time) {
	p.start = start
	p.end = end
	p.total = end.Sub(start)
	p.lastPct = 0
	p.began = time.Now()
	p.log.Info().
		Time("session_start", start).
		Time("session_end", end).
		Msg("simulation started")
}

// Observe logs when simulated time has advanced by at least another percent
// of the session window.
func (p *ProgressReporter) Observe(now time.Time) {
	if p.total <= 0 {
		return
	}
	pct := 100.0 - float64(p.end.Sub(now))/float64(p.total)*100.0
	if pct > p.lastPct+1.0 {
		p.lastPct = pct
		p.log.Info().
			Int("percent", int(pct)).
			Time("simulated_time", now).
			Msg("replay progress")
	}
}

// Done logs the elapsed wall-clock time for the run.
func (p *ProgressReporter) Done(samples int) {
	p.log.Info().
		Int("samples", samples).
		Dur("elapsed", time.Since(p.began)).
		Msg("simulation finished")
}
