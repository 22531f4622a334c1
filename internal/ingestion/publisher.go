package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"TickSim/internal/sim"
)

const (
	ResultStreamName = "TICKSIM_RESULTS"
	resultSubjects   = "ticksim.results.>"
)

// ResultPublisher announces finished runs on NATS so downstream consumers
// (dashboards, research notebooks) can pick up fresh results without polling
// Postgres. Publishing happens after persistence is confirmed.
type ResultPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// resultJSON is the outbound wire format: headline figures plus the series
// digest, not the sample series itself. Consumers that need the full series
// query it by run_id.
type resultJSON struct {
	RunID            string    `json:"run_id"`
	Strategy         string    `json:"strategy"`
	SessionStart     time.Time `json:"session_start"`
	SessionEnd       time.Time `json:"session_end"`
	Samples          int       `json:"samples"`
	FinalPosition    int64     `json:"final_position"`
	RealizedPnL      float64   `json:"realized_pnl"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	TotalPnL         float64   `json:"total_pnl"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	Commission       float64   `json:"commission"`
	Fills            int64     `json:"fills"`
	FilledQuantity   int64     `json:"filled_quantity"`
	ResidualQuantity int64     `json:"residual_quantity"`
	SeriesDigest     string    `json:"series_digest"`
}

func NewResultPublisher(js jetstream.JetStream, log zerolog.Logger) *ResultPublisher {
	return &ResultPublisher{js: js, log: log}
}

// Publish sends the run's summary to ticksim.results.{strategy}. Failure is
// reported but is not fatal to the run: the result already lives in Postgres.
func (rp *ResultPublisher) Publish(ctx context.Context, res *sim.Result) error {
	summary := res.Summarize()
	digest := sim.SeriesDigest(res.Samples)

	data, err := json.Marshal(resultJSON{
		RunID:            res.RunID.String(),
		Strategy:         res.Strategy,
		SessionStart:     res.Window.Start,
		SessionEnd:       res.Window.End,
		Samples:          summary.Samples,
		FinalPosition:    summary.FinalPosition,
		RealizedPnL:      summary.RealizedPnL,
		UnrealizedPnL:    summary.UnrealizedPnL,
		TotalPnL:         summary.TotalPnL,
		MaxDrawdown:      summary.MaxDrawdown,
		Commission:       summary.Commission,
		Fills:            summary.Fills,
		FilledQuantity:   summary.FilledQuantity,
		ResidualQuantity: summary.ResidualQuantity,
		SeriesDigest:     hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	subject := fmt.Sprintf("ticksim.results.%s", res.Strategy)
	if _, err := rp.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish result %s: %w", res.RunID, err)
	}

	rp.log.Info().
		Str("run_id", res.RunID.String()).
		Str("subject", subject).
		Msg("result published")
	return nil
}

// EnsureResultStream creates the outbound results stream.
func EnsureResultStream(ctx context.Context, js jetstream.JetStream, log zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      ResultStreamName,
		Subjects:  []string{resultSubjects},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", ResultStreamName, err)
	}
	log.Info().Str("stream", ResultStreamName).Msg("ensured result stream")
	return nil
}
