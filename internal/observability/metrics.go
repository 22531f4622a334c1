package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for TickSim. A nil *Metrics is valid
// everywhere and records nothing, so unit tests and library callers can skip
// registration.
type Metrics struct {
	// --- Replay ---
	EventsApplied    prometheus.Counter
	StrategyTicks    prometheus.Counter
	TradePrints      prometheus.Counter
	SamplesAppended  prometheus.Counter
	OneSidedSamples  prometheus.Counter
	RunDuration      prometheus.Histogram
	RunsCompleted    *prometheus.CounterVec

	// --- Matching ---
	TraderFills      prometheus.Counter
	FilledQuantity   prometheus.Counter
	ResidualQuantity prometheus.Counter
	ResidualPrints   prometheus.Counter

	// --- Accounting ---
	CommissionCharged prometheus.Counter

	// --- Persistence ---
	SamplesPersisted prometheus.Counter
	PersistErrors    *prometheus.CounterVec
	PersistBatchSize prometheus.Histogram
	PersistBatchDur  prometheus.Histogram

	// --- Ingestion ---
	EventsIngested  *prometheus.CounterVec
	IngestRejected  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_replay_events_applied_total",
			Help: "Market events applied to the replayed book",
		}),

		StrategyTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_replay_strategy_ticks_total",
			Help: "Strategy decision ticks executed",
		}),

		TradePrints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_replay_trade_prints_total",
			Help: "Trade prints matched against the trader book",
		}),

		SamplesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_replay_samples_total",
			Help: "PnL samples appended to the output series",
		}),

		OneSidedSamples: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_replay_one_sided_samples_total",
			Help: "Samples whose mid-price was carried forward because one book side was empty",
		}),

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticksim_run_duration_seconds",
			Help:    "Wall-clock duration of one simulation run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),

		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ticksim_runs_completed_total",
			Help: "Simulation runs finished, by outcome",
		}, []string{"outcome"}),

		TraderFills: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_match_trader_fills_total",
			Help: "Individual fills of trader quotes",
		}),

		FilledQuantity: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_match_filled_quantity_total",
			Help: "Total quantity filled on trader quotes",
		}),

		ResidualQuantity: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_match_residual_quantity_total",
			Help: "Print quantity dropped because no eligible trader liquidity remained",
		}),

		ResidualPrints: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_match_residual_prints_total",
			Help: "Trade prints that ended with an unmatched residual",
		}),

		CommissionCharged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_account_commission_total",
			Help: "Cumulative commission charged across runs",
		}),

		SamplesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticksim_persist_samples_written_total",
			Help: "Samples written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ticksim_persist_errors_total",
			Help: "Failed persistence operations, by stage",
		}, []string{"stage"}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticksim_persist_batch_size",
			Help:    "Samples per persistence flush",
			Buckets: prometheus.LinearBuckets(0, 100, 10),
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticksim_persist_batch_duration_seconds",
			Help:    "Wall-clock duration of one persistence flush",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ticksim_ingest_events_total",
			Help: "Raw market events ingested, by source",
		}, []string{"source"}),

		IngestRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ticksim_ingest_rejected_total",
			Help: "Raw records rejected during ingestion",
		}, []string{"source", "reason"}),
	}
}
