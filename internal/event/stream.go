package event

import (
	"sort"
	"time"
)

// Stream is a finite, time-ordered market event log with positional access.
// It is the sole input of a simulation run. Concurrent runs against the same
// history must each receive their own Clone; runs never share a Stream.
type Stream struct {
	events []MarketEvent
}

// NewStream wraps a slice of events. The slice is taken over by the Stream;
// callers must not mutate it afterwards.
func NewStream(events []MarketEvent) *Stream {
	return &Stream{events: events}
}

func (s *Stream) Len() int {
	return len(s.events)
}

// At returns the event at log position i.
func (s *Stream) At(i int) MarketEvent {
	return s.events[i]
}

// Prefix returns a read-only view of the first n events. This is the
// history handed to strategies; it aliases the underlying log.
func (s *Stream) Prefix(n int) []MarketEvent {
	return s.events[:n:n]
}

// Range returns a read-only view of events in [from, to).
func (s *Stream) Range(from, to int) []MarketEvent {
	return s.events[from:to:to]
}

// SearchTime returns the first log position whose exchange timestamp is
// not before t (len if no such event exists).
func (s *Stream) SearchTime(t time.Time) int {
	return sort.Search(len(s.events), func(i int) bool {
		return !s.events[i].ExchTime.Before(t)
	})
}

// SliceByTime returns the events with exchange timestamps in [from, to).
func (s *Stream) SliceByTime(from, to time.Time) []MarketEvent {
	return s.Range(s.SearchTime(from), s.SearchTime(to))
}

// Clone deep-copies the stream so that a concurrent run owns its input.
func (s *Stream) Clone() *Stream {
	events := make([]MarketEvent, len(s.events))
	copy(events, s.events)
	return &Stream{events: events}
}

// TradePrints returns the log positions of executed trades, dropping prints
// that repeat an earlier print's exchange timestamp. Exchange logs echo one
// deal per consumed order; keeping the first occurrence per timestamp matches
// the convention the accounting is defined against.
func (s *Stream) TradePrints() []int {
	var idx []int
	var lastTime time.Time
	seen := false
	for i, e := range s.events {
		if !e.IsTradePrint() {
			continue
		}
		if seen && e.ExchTime.Equal(lastTime) {
			continue
		}
		idx = append(idx, i)
		lastTime = e.ExchTime
		seen = true
	}
	return idx
}
