package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/retail-pipeline/internal/cadence"
	"github.com/sells-group/retail-pipeline/internal/consumer"
	"github.com/sells-group/retail-pipeline/internal/db"
	"github.com/sells-group/retail-pipeline/internal/engine"
	"github.com/sells-group/retail-pipeline/internal/generator"
	"github.com/sells-group/retail-pipeline/internal/ingest"
	"github.com/sells-group/retail-pipeline/internal/producer"
	"github.com/sells-group/retail-pipeline/internal/readiness"
	"github.com/sells-group/retail-pipeline/internal/resilience"
	"github.com/sells-group/retail-pipeline/internal/seed"
	"github.com/sells-group/retail-pipeline/internal/sink"
	"github.com/sells-group/retail-pipeline/internal/staging"
	"github.com/sells-group/retail-pipeline/internal/state"
	"github.com/sells-group/retail-pipeline/internal/status"
)

func newSweeper(store staging.Store) *producer.Sweeper {
	return producer.NewSweeper(store,
		cfg.Staging.InputPrefix,
		cfg.Staging.ProcessedPrefix,
		cfg.Producer.Retention,
		time.Duration(cfg.Producer.SweepMinAgeSecs)*time.Second,
	)
}

// runProducer waits for the staging namenode, loads the seed corpus and
// cycles until ctx is cancelled.
func runProducer(ctx context.Context, tracker *status.Tracker) error {
	if cfg.Readiness.Enabled {
		if err := readiness.New(cfg.Readiness).Wait(ctx); err != nil {
			return err
		}
	}

	sched, err := cadence.Parse(cfg.Producer.Schedule)
	if err != nil {
		return err
	}

	corpus, err := seed.Load(ctx, cfg.Producer.SeedPath)
	if err != nil {
		return err
	}

	store, err := staging.Open(ctx, cfg.Staging)
	if err != nil {
		return err
	}

	st, err := state.Open(ctx, cfg.Producer.StatePath)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	p := producer.New(
		corpus,
		generator.NewSeeded(uint64(time.Now().UnixNano())),
		producer.NewPublisher(store, cfg.Staging.InputPrefix, cfg.Staging.ScratchDir),
		newSweeper(store),
		st,
		tracker,
		producer.Options{
			MinBatch:   cfg.Producer.MinBatch,
			MaxBatch:   cfg.Producer.MaxBatch,
			SweepEvery: cfg.Producer.SweepEvery,
		},
	)
	return p.Run(ctx, sched)
}

// runConsumer builds the configured engine and runs the trigger loop.
func runConsumer(ctx context.Context, tracker *status.Tracker) error {
	sched, err := cadence.Parse(cfg.Consumer.Schedule)
	if err != nil {
		return err
	}

	var eng engine.Engine
	switch cfg.Consumer.Engine {
	case "inprocess":
		env, err := openTransformEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		eng = engine.NewInProcess(env.Pass)
	default:
		eng = engine.NewExec(cfg.Engine)
	}

	trig := consumer.New(eng, scriptTemplate(), time.Duration(cfg.Consumer.TimeoutSecs)*time.Second, tracker)
	return trig.Run(ctx, sched)
}

// scriptTemplate fills every script field that comes from configuration.
func scriptTemplate() engine.Script {
	return engine.Script{
		InputPrefix:     cfg.Staging.InputPrefix,
		ProcessedPrefix: cfg.Staging.ProcessedPrefix,
		Pattern:         cfg.Consumer.Pattern,
		WarehouseTable:  cfg.Warehouse.Table,
		RelationalTable: cfg.Relational.Table,
	}
}

// withStatus runs each loop against one shared tracker, alongside the status
// server when server.addr is set. The first loop error cancels the others.
func withStatus(ctx context.Context, loops ...func(ctx context.Context, tracker *status.Tracker) error) error {
	tracker := status.NewTracker()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Addr != "" {
		g.Go(func() error {
			return status.Serve(gctx, cfg.Server.Addr, status.NewRouter(tracker))
		})
	}
	for _, loop := range loops {
		g.Go(func() error { return loop(gctx, tracker) })
	}
	return g.Wait()
}

func connectRelational(ctx context.Context) (*pgxpool.Pool, error) {
	retry := resilience.FromRetryConfig(cfg.Relational.ConnectAttempts, cfg.Relational.ConnectBackoffMs, 0)
	return db.Connect(ctx, cfg.Relational.DatabaseURL, cfg.Relational.MaxConns, retry)
}

// transformEnv holds the resources a transform pass writes through.
type transformEnv struct {
	store     staging.Store
	pool      *pgxpool.Pool
	warehouse *sink.Warehouse
}

// openTransformEnv connects to staging and both sinks. The warehouse is
// best-effort: if it cannot be opened, passes run with a failed warehouse.
func openTransformEnv(ctx context.Context) (*transformEnv, error) {
	log := zap.L().With(zap.String("component", "transform"))

	store, err := staging.Open(ctx, cfg.Staging)
	if err != nil {
		return nil, err
	}

	pool, err := connectRelational(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		log.Warn("relational migrations failed, ingest log may be unavailable", zap.Error(err))
	}

	env := &transformEnv{store: store, pool: pool}
	wh, err := sink.OpenWarehouse(cfg.Warehouse.Path, cfg.Warehouse.Table)
	if err != nil {
		log.Warn("warehouse unavailable, continuing with relational sink only", zap.Error(err))
	} else {
		env.warehouse = wh
	}
	return env, nil
}

// Pass runs one transform pass described by s. It is the engine.PassFunc for
// in-process mode and the body of the transform command.
func (e *transformEnv) Pass(ctx context.Context, s engine.Script) error {
	var warehouse sink.Sink
	if e.warehouse != nil {
		warehouse = e.warehouse.WithTable(s.WarehouseTable)
	}

	job := ingest.NewJob(
		e.store,
		ingest.JobConfig{InputPrefix: s.InputPrefix, Pattern: s.Pattern},
		ingest.NewLoader(warehouse, sink.NewRelational(e.pool, s.RelationalTable)),
		ingest.NewArchiver(e.store, s.ProcessedPrefix),
		ingest.NewIngestLog(e.pool),
	)
	_, err := job.Run(ctx, s.RunID)
	return eris.Wrap(err, "transform pass")
}

// Close releases the sinks.
func (e *transformEnv) Close() {
	if e.warehouse != nil {
		if err := e.warehouse.Close(); err != nil {
			zap.L().Warn("failed to close warehouse", zap.Error(err))
		}
	}
	e.pool.Close()
}
