package sim

import "fmt"

// MissingBoundaryError reports that the trading window could not be
// discovered: the event log carries no Snapshot-flagged event, or no Add
// event after the final snapshot. Fatal before any replay begins.
type MissingBoundaryError struct {
	Boundary string // "snapshot" or "session start"
}

func (e *MissingBoundaryError) Error() string {
	return fmt.Sprintf("missing session boundary: no %s found in event log", e.Boundary)
}

// SeedError reports that the seeded market book cannot price the instrument
// at session start. Replay needs both sides present before the first sample.
type SeedError struct {
	BidLevels int
	AskLevels int
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("seeded market book is one-sided at session start: %d bid levels, %d ask levels",
		e.BidLevels, e.AskLevels)
}
