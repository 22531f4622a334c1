package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TickSim/internal/event"
	"TickSim/internal/observability"
)

// JetStream layout for recorded order logs. Each instrument's feed recorder
// publishes to its own subject so recordings can be drained independently.
const (
	EventStreamName = "TICKSIM_EVENTS"
	eventSubjects   = "ticksim.events.>"
)

// RawEvent is a message pulled from NATS, not yet decoded.
type RawEvent struct {
	Subject  string
	Data     []byte
	Received time.Time
}

// NATSSubscriber drains a recorded order log from JetStream into an
// in-memory stream. Replay needs the complete session up front, so this is a
// bounded drain of an already-finished recording, not a live subscription.
type NATSSubscriber struct {
	js      jetstream.JetStream
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewNATSSubscriber(js jetstream.JetStream, log zerolog.Logger, metrics *observability.Metrics) *NATSSubscriber {
	return &NATSSubscriber{js: js, log: log, metrics: metrics}
}

// Drain fetches every recorded event for the instrument and returns them as
// a stream. The drain ends at the first fetch that comes back empty.
func (ns *NATSSubscriber) Drain(ctx context.Context, instrument string) (*event.Stream, error) {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, EventStreamName, jetstream.ConsumerConfig{
		Durable:       fmt.Sprintf("ticksim-drain-%s", instrument),
		FilterSubject: fmt.Sprintf("ticksim.events.%s", instrument),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create drain consumer for %s: %w", instrument, err)
	}

	var events []event.MarketEvent
	var rejected int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := consumer.Fetch(1000, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, fmt.Errorf("fetch recorded events: %w", err)
		}

		got := 0
		for msg := range batch.Messages() {
			got++
			raw := RawEvent{Subject: msg.Subject(), Data: msg.Data(), Received: time.Now()}
			e, err := ParseRawEvent(raw)
			if err != nil {
				rejected++
				if ns.metrics != nil {
					ns.metrics.IngestRejected.WithLabelValues("nats", "malformed").Inc()
				}
				ns.log.Warn().Str("subject", raw.Subject).Err(err).Msg("dropping malformed recorded event")
				msg.Ack()
				continue
			}
			events = append(events, e)
			if ns.metrics != nil {
				ns.metrics.EventsIngested.WithLabelValues("nats").Inc()
			}
			msg.Ack()
		}
		if err := batch.Error(); err != nil {
			return nil, fmt.Errorf("fetch recorded events: %w", err)
		}
		if got == 0 {
			break
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("recording for %s: no parseable events", instrument)
	}

	ns.log.Info().
		Str("instrument", instrument).
		Int("events", len(events)).
		Int("rejected", rejected).
		Msg("recording drained")
	return event.NewStream(events), nil
}

// EnsureEventStream creates the recorded-events stream if it does not exist.
func EnsureEventStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      EventStreamName,
		Subjects:  []string{eventSubjects},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", EventStreamName, err)
	}
	log.Info().Str("stream", EventStreamName).Msg("ensured event stream")
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
