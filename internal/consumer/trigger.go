// Package consumer runs the ingestion trigger loop: on every tick it hands a
// fresh transform script to the engine, bounded by a timeout, and logs the
// outcome. Only a launch failure stops the loop.
package consumer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/cadence"
	"github.com/sells-group/retail-pipeline/internal/engine"
	"github.com/sells-group/retail-pipeline/internal/status"
)

// Trigger owns the Idle → Running → Idle cycle.
type Trigger struct {
	engine   engine.Engine
	template engine.Script
	timeout  time.Duration
	tracker  *status.Tracker
	now      func() time.Time
}

// New creates a Trigger. template supplies every script field except RunID
// and CreatedAt. tracker may be nil.
func New(eng engine.Engine, template engine.Script, timeout time.Duration, tracker *status.Tracker) *Trigger {
	return &Trigger{
		engine:   eng,
		template: template,
		timeout:  timeout,
		tracker:  tracker,
		now:      time.Now,
	}
}

// Step runs one cycle. A failed or timed-out pass is logged and returns nil;
// an engine launch failure is returned and ends the loop.
func (t *Trigger) Step(ctx context.Context, cycle int) error {
	s := t.template
	s.RunID = uuid.NewString()
	s.CreatedAt = t.now().UTC()

	log := zap.L().With(
		zap.String("component", "consumer"),
		zap.Int("cycle", cycle),
		zap.String("run_id", s.RunID),
	)
	log.Info("transform cycle started")

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := t.engine.Run(runCtx, s)

	c := status.Cycle{
		Kind:    "consume",
		Cycle:   cycle,
		RunID:   s.RunID,
		OK:      err == nil && res.OK,
		Elapsed: res.Elapsed,
		At:      t.now(),
	}
	if err != nil {
		c.Error = err.Error()
	}
	t.tracker.Record(c)

	switch {
	case eris.Is(err, engine.ErrLaunch):
		log.Error("transform engine could not be launched, stopping", zap.Error(err))
		return err
	case err != nil:
		log.Error("transform cycle failed, no data processed",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err),
		)
	default:
		log.Info("transform cycle succeeded", zap.Duration("elapsed", res.Elapsed))
	}
	return nil
}

// Run cycles on sched until ctx is cancelled or the engine cannot be launched.
func (t *Trigger) Run(ctx context.Context, sched cron.Schedule) error {
	zap.L().Info("consumer started", zap.Duration("timeout", t.timeout))
	err := cadence.Loop(ctx, sched, t.Step)
	zap.L().Info("consumer stopped")
	return err
}
