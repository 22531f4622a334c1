package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"TickSim/internal/event"
)

// marketEventJSON is the wire format carried on the NATS recording subjects.
// Field names use snake_case to match upstream producers; timestamps are
// microseconds since epoch.
type marketEventJSON struct {
	ReceivedUs   int64  `json:"received_us"`
	ExchTimeUs   int64  `json:"exch_time_us"`
	OrderID      int64  `json:"order_id"`
	Price        int64  `json:"price"`
	Amount       int64  `json:"amount"`
	AmountRest   int64  `json:"amount_rest"`
	DealID       int64  `json:"deal_id"`
	DealPrice    int64  `json:"deal_price"`
	OpenInterest int64  `json:"open_interest"`
	Flags        string `json:"flags"`
}

// ParseRawEvent converts a raw NATS message into a MarketEvent.
func ParseRawEvent(raw RawEvent) (event.MarketEvent, error) {
	var j marketEventJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return event.MarketEvent{}, fmt.Errorf("parse market event: %w", err)
	}
	if j.ExchTimeUs == 0 {
		return event.MarketEvent{}, fmt.Errorf("market event on %s: missing exch_time_us", raw.Subject)
	}

	return event.MarketEvent{
		Received:     time.UnixMicro(j.ReceivedUs),
		ExchTime:     time.UnixMicro(j.ExchTimeUs),
		OrderID:      j.OrderID,
		Price:        j.Price,
		Amount:       j.Amount,
		AmountRest:   j.AmountRest,
		DealID:       j.DealID,
		DealPrice:    j.DealPrice,
		OpenInterest: j.OpenInterest,
		Flags:        event.ParseFlags(j.Flags),
	}, nil
}
