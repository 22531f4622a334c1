package event

import (
	"strings"
	"time"
)

// Flags is the set of markers carried by a market event, as exported by the
// exchange log. An event carries exactly one of Buy/Sell and at most one of
// Add/Delete.
type Flags uint8

const (
	FlagAdd Flags = 1 << iota
	FlagDelete
	FlagSnapshot
	FlagEndOfTransaction
	FlagBuy
	FlagSell
)

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagAdd, "Add"},
	{FlagDelete, "Delete"},
	{FlagSnapshot, "Snapshot"},
	{FlagEndOfTransaction, "EndOfTransaction"},
	{FlagBuy, "Buy"},
	{FlagSell, "Sell"},
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

// ParseFlags converts a comma-separated flag list ("Add, Buy, Snapshot")
// into a Flags bitmask. Unknown names are ignored: exchange exports carry
// markers (Quote, Counter, ...) that the replay does not interpret.
func ParseFlags(s string) Flags {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(part) {
		case "Add":
			f |= FlagAdd
		case "Delete":
			f |= FlagDelete
		case "Snapshot":
			f |= FlagSnapshot
		case "EndOfTransaction":
			f |= FlagEndOfTransaction
		case "Buy":
			f |= FlagBuy
		case "Sell":
			f |= FlagSell
		}
	}
	return f
}

// MarketEvent is one immutable record of the exchange order-book log.
// Prices are exchange tick units, amounts are contract units. Ordering key is
// ExchTime with log position as a stable tiebreak; events are never mutated
// after ingestion.
type MarketEvent struct {
	Received     time.Time
	ExchTime     time.Time
	OrderID      int64
	Price        int64
	Amount       int64
	AmountRest   int64
	DealID       int64
	DealPrice    int64
	OpenInterest int64
	Flags        Flags
}

// IsTradePrint reports whether the event represents an executed trade.
func (e MarketEvent) IsTradePrint() bool {
	return e.DealID != 0
}
