package producer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/cadence"
	"github.com/sells-group/retail-pipeline/internal/generator"
	"github.com/sells-group/retail-pipeline/internal/seed"
	"github.com/sells-group/retail-pipeline/internal/state"
	"github.com/sells-group/retail-pipeline/internal/status"
)

// Options sizes batches and sets the consolidation cadence.
type Options struct {
	MinBatch int
	MaxBatch int
	// SweepEvery runs the sweeper after every Nth successful publish. 0 disables it.
	SweepEvery int
}

// CycleResult is the outcome of one producer cycle.
type CycleResult struct {
	Cycle   int
	RunID   string
	BatchID int64
	Publish PublishResult
	Sweep   *SweepResult
	Err     error
	Elapsed time.Duration
}

// Producer owns the generate → publish → consolidate loop. Its counters are
// explicit state loaded from and saved to a state.Store.
type Producer struct {
	corpus    *seed.Corpus
	gen       *generator.Generator
	publisher *Publisher
	sweeper   *Sweeper
	store     state.Store
	tracker   *status.Tracker
	opts      Options
	now       func() time.Time

	counters state.Counters
}

// New creates a Producer. sweeper and tracker may be nil.
func New(corpus *seed.Corpus, gen *generator.Generator, pub *Publisher, sweeper *Sweeper, st state.Store, tracker *status.Tracker, opts Options) *Producer {
	return &Producer{
		corpus:    corpus,
		gen:       gen,
		publisher: pub,
		sweeper:   sweeper,
		store:     st,
		tracker:   tracker,
		opts:      opts,
		now:       time.Now,
	}
}

// Counters returns the current loop state.
func (p *Producer) Counters() state.Counters { return p.counters }

// Restore loads saved counters so the sequence continues after a restart.
func (p *Producer) Restore(ctx context.Context) error {
	c, err := p.store.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "producer: restore counters")
	}
	p.counters = c
	return nil
}

// Step runs one cycle. Failures are logged and reported, never retried within
// the cycle: the next cycle generates a fresh batch.
func (p *Producer) Step(ctx context.Context, cycle int) CycleResult {
	res := CycleResult{Cycle: cycle, RunID: uuid.NewString()}
	log := zap.L().With(
		zap.String("component", "producer"),
		zap.Int("cycle", cycle),
		zap.String("run_id", res.RunID),
	)
	start := time.Now()

	p.counters.BatchSeq++
	res.BatchID = p.counters.BatchSeq

	size := p.gen.DrawSize(p.opts.MinBatch, p.opts.MaxBatch)
	batch := p.gen.Generate(p.corpus, size, res.BatchID, p.now())

	res.Publish, res.Err = p.publisher.Publish(ctx, batch)
	switch {
	case !res.Publish.OK:
		log.Error("publish failed, batch dropped",
			zap.Int64("batch_id", res.BatchID),
			zap.String("scratch", res.Publish.ArtifactPath),
			zap.Error(res.Err),
		)
	case res.Err != nil:
		log.Warn("batch published but scratch cleanup failed", zap.Error(res.Err))
		res.Err = nil
	}

	if res.Publish.OK {
		p.counters.Published++
		log.Info("batch published",
			zap.Int64("batch_id", res.BatchID),
			zap.String("artifact", res.Publish.ArtifactPath),
			zap.Int("rows", res.Publish.Rows),
			zap.Int("requested", size),
		)
		p.maybeSweep(ctx, log, &res)
	}

	if err := p.store.Save(ctx, p.counters); err != nil {
		log.Warn("failed to save producer counters", zap.Error(err))
	}

	res.Elapsed = time.Since(start)
	c := status.Cycle{
		Kind:    "produce",
		Cycle:   cycle,
		RunID:   res.RunID,
		OK:      res.Publish.OK,
		Rows:    res.Publish.Rows,
		Elapsed: res.Elapsed,
		At:      p.now(),
	}
	if res.Err != nil {
		c.Error = res.Err.Error()
	}
	p.tracker.Record(c)
	return res
}

func (p *Producer) maybeSweep(ctx context.Context, log *zap.Logger, res *CycleResult) {
	if p.sweeper == nil || p.opts.SweepEvery <= 0 || p.counters.Published%int64(p.opts.SweepEvery) != 0 {
		return
	}
	sr, err := p.sweeper.Sweep(ctx)
	if err != nil {
		log.Error("consolidation failed", zap.Error(err))
		return
	}
	res.Sweep = &sr
}

// Run restores counters and cycles on sched until ctx is cancelled.
func (p *Producer) Run(ctx context.Context, sched cron.Schedule) error {
	if err := p.Restore(ctx); err != nil {
		return err
	}
	zap.L().Info("producer started",
		zap.Int("seed_rows", p.corpus.Len()),
		zap.Int64("batch_seq", p.counters.BatchSeq),
		zap.Int64("published", p.counters.Published),
	)

	err := cadence.Loop(ctx, sched, func(ctx context.Context, cycle int) error {
		p.Step(ctx, cycle)
		return nil
	})
	zap.L().Info("producer stopped", zap.Int64("batch_seq", p.counters.BatchSeq))
	return err
}
