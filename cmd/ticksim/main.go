package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"TickSim/internal/config"
	"TickSim/internal/event"
	"TickSim/internal/ingestion"
	"TickSim/internal/observability"
	"TickSim/internal/persistence"
	"TickSim/internal/runner"
	"TickSim/internal/sim"
	"TickSim/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to TOML configuration file")
	flag.Parse()

	// A missing default config file is fine: built-in defaults plus TICKSIM_*
	// env overrides carry a bare invocation.
	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !flagWasSet("config") {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		bootstrapFatal("load config", err)
	}
	if err := cfg.Validate(); err != nil {
		bootstrapFatal("validate config", err)
	}

	level := observability.ParseLogLevel(cfg.LogLevel)
	log := observability.NewLoggerWithLevel("ticksim", level)
	log.Info().Str("config", path).Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// --- Observability ---
	var metrics *observability.Metrics
	health := observability.NewHealthChecker()
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", health.LivenessHandler)
			mux.HandleFunc("/readyz", health.ReadinessHandler)
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	// --- Ingest the recorded session ---
	stream, js, natsClose, err := ingest(ctx, cfg, log, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("ingest order log")
	}
	if natsClose != nil {
		defer natsClose()
	}

	if err := event.ValidateStream(stream); err != nil {
		log.Fatal().Err(err).Msg("order log not replayable")
	}
	log.Info().Int("events", stream.Len()).Msg("order log validated")
	health.SetReady(true)

	// --- Strategies ---
	registry := strategy.NewRegistry()
	registry.Register("hold", &strategy.Hold{Delay: cfg.Strategy.Delay.Duration})
	registry.Register("spread", &strategy.Spread{
		Volume: cfg.Strategy.Volume,
		Delay:  cfg.Strategy.Delay.Duration,
	})

	simCfg := sim.Config{
		CommissionRate: cfg.Session.CommissionRate,
		MaxEvents:      cfg.Session.MaxEvents,
		StrongPriority: cfg.Session.StrongPriority,
		DefaultDelay:   cfg.Session.DefaultDelay.Duration,
		SessionLength:  cfg.Session.SessionLength.Duration,
	}

	run := runner.New(stream, registry, simCfg, cfg.Session.VerifyRuns, log, metrics)

	// --- Persistence ---
	var db *sql.DB
	var sampleChan chan persistence.SampleRow
	var workerDone chan error
	if cfg.Postgres.Enabled {
		db, err = openPostgres(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres")
		}
		defer db.Close()

		sampleChan = make(chan persistence.SampleRow, 1024)
		worker := persistence.NewSampleWorker(db, sampleChan,
			cfg.Postgres.BatchSize, cfg.Postgres.FlushTimeout.Duration,
			log.With().Str("component", "persistence").Logger(), metrics)

		workerDone = make(chan error, 1)
		go func() { workerDone <- worker.Run(ctx) }()

		run.OnSample(func(runID uuid.UUID, index int, s sim.Sample) {
			sampleChan <- persistence.SampleRow{
				RunID:         runID,
				Index:         index,
				Time:          s.Time,
				Position:      s.Position,
				RealizedPnL:   s.RealizedPnL,
				UnrealizedPnL: s.UnrealizedPnL,
				MidPrice:      s.MidPrice,
			}
		})
	}

	// --- Run ---
	results, err := run.RunAll(ctx, cfg.Strategy.Active)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	// Drain outstanding samples before writing run headers.
	if sampleChan != nil {
		close(sampleChan)
		if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("sample worker")
		}
	}

	var writer *persistence.ResultWriter
	var dedup *persistence.RunDedupChecker
	if db != nil {
		writer = persistence.NewResultWriter(db)
		dedup = persistence.NewRunDedupChecker(db)
	}

	for _, res := range results {
		logSummary(log, res)

		if db != nil {
			digest := sim.SeriesDigest(res.Samples)
			dup, err := dedup.IsDuplicate(res.Strategy, res.Window.Start, digest[:])
			if err != nil {
				log.Warn().Err(err).Msg("dedup check failed, storing anyway")
			}
			if dup {
				log.Info().Str("strategy", res.Strategy).Msg("identical run already stored, skipping header")
				continue
			}
			if err := writer.WriteRun(ctx, db, res); err != nil {
				log.Error().Err(err).Str("run_id", res.RunID.String()).Msg("store run")
			}
		}

		if cfg.NATS.PublishResults && js != nil {
			pub := ingestion.NewResultPublisher(js, log.With().Str("component", "publisher").Logger())
			if err := pub.Publish(ctx, res); err != nil {
				log.Warn().Err(err).Msg("publish result")
			}
		}
	}

	log.Info().Int("runs", len(results)).Msg("done")
}

// ingest loads the recorded session from the configured source. The returned
// close function (non-nil for the NATS source) releases the connection; the
// JetStream handle is reused for result publishing.
func ingest(ctx context.Context, cfg *config.Config, log zerolog.Logger, metrics *observability.Metrics) (*event.Stream, jetstream.JetStream, func(), error) {
	switch cfg.Ingest.Source {
	case "nats":
		nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL, log)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := ingestion.EnsureEventStream(ctx, js, log); err != nil {
			nc.Close()
			return nil, nil, nil, err
		}
		if cfg.NATS.PublishResults {
			if err := ingestion.EnsureResultStream(ctx, js, log); err != nil {
				nc.Close()
				return nil, nil, nil, err
			}
		}
		sub := ingestion.NewNATSSubscriber(js, log.With().Str("component", "ingest").Logger(), metrics)
		stream, err := sub.Drain(ctx, cfg.Ingest.Instrument)
		if err != nil {
			nc.Close()
			return nil, nil, nil, err
		}
		return stream, js, nc.Close, nil

	default: // "file", enforced by Validate
		stream, err := ingestion.ReadFile(cfg.Ingest.Path,
			log.With().Str("component", "ingest").Logger(), metrics)
		if err != nil {
			return nil, nil, nil, err
		}

		// Result publishing may still want NATS even for file ingest.
		if cfg.NATS.PublishResults {
			nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL, log)
			if err != nil {
				return nil, nil, nil, err
			}
			if err := ingestion.EnsureResultStream(ctx, js, log); err != nil {
				nc.Close()
				return nil, nil, nil, err
			}
			return stream, js, nc.Close, nil
		}
		return stream, nil, nil, nil
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("postgres connected")

	if cfg.Postgres.RunMigrations {
		migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir,
			log.With().Str("component", "migrator").Logger())
		if err := migrator.Up(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("migrations applied")
	}
	return db, nil
}

func logSummary(log zerolog.Logger, res *sim.Result) {
	s := res.Summarize()
	log.Info().
		Str("strategy", s.Strategy).
		Str("run_id", res.RunID.String()).
		Time("session_start", res.Window.Start).
		Time("session_end", res.Window.End).
		Int("samples", s.Samples).
		Int64("final_position", s.FinalPosition).
		Float64("realized_pnl", s.RealizedPnL).
		Float64("unrealized_pnl", s.UnrealizedPnL).
		Float64("total_pnl", s.TotalPnL).
		Float64("max_drawdown", s.MaxDrawdown).
		Float64("commission", s.Commission).
		Int64("fills", s.Fills).
		Int64("filled_quantity", s.FilledQuantity).
		Int64("residual_quantity", s.ResidualQuantity).
		Msg("run summary")
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// bootstrapFatal reports errors that occur before the structured logger is
// configured.
func bootstrapFatal(stage string, err error) {
	logger := observability.NewLogger("ticksim")
	logger.Fatal().Err(err).Msg(stage)
}
