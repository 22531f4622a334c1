package event

import (
	"fmt"
	"time"
)

// OrderValidator checks that a stream is replayable: exchange timestamps must
// be non-decreasing. Not thread-safe; a validator belongs to one ingestion
// pass.
type OrderValidator struct {
	lastExchTime time.Time
	checked      int64
	regressions  int64
}

func NewOrderValidator() *OrderValidator {
	return &OrderValidator{}
}

// Observe feeds the next event in log order. A timestamp regression means the
// log is corrupted or mis-merged; the caller must abort ingestion.
func (v *OrderValidator) Observe(position int, e MarketEvent) error {
	v.checked++
	if e.ExchTime.Before(v.lastExchTime) {
		v.regressions++
		return fmt.Errorf("timestamp regression at log position %d: %s < %s",
			position, e.ExchTime.Format(time.RFC3339Nano), v.lastExchTime.Format(time.RFC3339Nano))
	}
	v.lastExchTime = e.ExchTime
	return nil
}

// Checked returns the number of events observed.
func (v *OrderValidator) Checked() int64 {
	return v.checked
}

// ValidateStream runs an OrderValidator over a whole stream.
func ValidateStream(s *Stream) error {
	v := NewOrderValidator()
	for i := 0; i < s.Len(); i++ {
		if err := v.Observe(i, s.At(i)); err != nil {
			return err
		}
	}
	return nil
}
