package ingestion

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"TickSim/internal/event"
	"TickSim/internal/observability"
)

// exchange exports carry microsecond wall-clock timestamps
const timeLayout = "02.01.2006 15:04:05.000000"

const fileColumns = 10

// ReadFile loads an order-log export (the semicolon-separated text produced
// by qsh2txt) into an event stream. Leading lines before the column header
// are export metadata and are skipped. Malformed rows are counted and
// dropped rather than aborting the load; an export that yields no events at
// all is an error.
func ReadFile(path string, log zerolog.Logger, metrics *observability.Metrics) (*event.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var events []event.MarketEvent
	var rejected int
	inBody := false
	line := 0

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !inBody {
			if strings.HasPrefix(text, "Received;") {
				inBody = true
			}
			continue
		}

		e, err := parseRow(text)
		if err != nil {
			rejected++
			if metrics != nil {
				metrics.IngestRejected.WithLabelValues("file", "malformed").Inc()
			}
			log.Warn().Int("line", line).Err(err).Msg("dropping malformed order-log row")
			continue
		}
		events = append(events, e)
		if metrics != nil {
			metrics.EventsIngested.WithLabelValues("file").Inc()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read order log: %w", err)
	}
	if !inBody {
		return nil, fmt.Errorf("order log %s: column header not found", path)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("order log %s: no parseable events", path)
	}

	log.Info().
		Str("path", path).
		Int("events", len(events)).
		Int("rejected", rejected).
		Msg("order log loaded")
	return event.NewStream(events), nil
}

// parseRow decodes one Received;ExchTime;OrderId;Price;Amount;AmountRest;
// DealId;DealPrice;OI;Flags line.
func parseRow(text string) (event.MarketEvent, error) {
	fields := strings.Split(text, ";")
	if len(fields) != fileColumns {
		return event.MarketEvent{}, fmt.Errorf("expected %d columns, got %d", fileColumns, len(fields))
	}

	received, err := time.Parse(timeLayout, fields[0])
	if err != nil {
		return event.MarketEvent{}, fmt.Errorf("parse Received: %w", err)
	}
	exchTime, err := time.Parse(timeLayout, fields[1])
	if err != nil {
		return event.MarketEvent{}, fmt.Errorf("parse ExchTime: %w", err)
	}

	ints := make([]int64, 7)
	names := []string{"OrderId", "Price", "Amount", "AmountRest", "DealId", "DealPrice", "OI"}
	for i, name := range names {
		v, err := strconv.ParseInt(strings.TrimSpace(fields[2+i]), 10, 64)
		if err != nil {
			return event.MarketEvent{}, fmt.Errorf("parse %s: %w", name, err)
		}
		ints[i] = v
	}

	return event.MarketEvent{
		Received:     received,
		ExchTime:     exchTime,
		OrderID:      ints[0],
		Price:        ints[1],
		Amount:       ints[2],
		AmountRest:   ints[3],
		DealID:       ints[4],
		DealPrice:    ints[5],
		OpenInterest: ints[6],
		Flags:        event.ParseFlags(fields[9]),
	}, nil
}
