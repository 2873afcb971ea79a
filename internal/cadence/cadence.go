// Package cadence drives the producer and consumer cycles. A cycle runs to
// completion before the next sleep begins, so cycles never overlap, and
// cancellation is only observed between cycles.
package cadence

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
)

// Parse accepts standard five-field cron specs and descriptors such as
// "@every 30s" or "@hourly".
func Parse(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "cadence: parse %q", spec)
	}
	return s, nil
}

// Sleep blocks until the schedule's next activation after now. It returns
// false if ctx ended first.
func Sleep(ctx context.Context, sched cron.Schedule, now time.Time) bool {
	d := sched.Next(now).Sub(now)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// CycleFunc runs one cycle. Returning an error stops the loop.
type CycleFunc func(ctx context.Context, cycle int) error

// Loop runs fn immediately and then at every activation of sched until ctx is
// cancelled or fn returns an error. fn receives a context that is not
// cancelled by ctx, so in-flight store operations finish normally.
func Loop(ctx context.Context, sched cron.Schedule, fn CycleFunc) error {
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := fn(context.WithoutCancel(ctx), cycle); err != nil {
			return err
		}
		if !Sleep(ctx, sched, time.Now()) {
			return nil
		}
	}
}
