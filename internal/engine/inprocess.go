package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// PassFunc performs a transform pass directly.
type PassFunc func(ctx context.Context, s Script) error

// InProcess runs passes in the calling process, bounded by ctx.
type InProcess struct {
	pass PassFunc
}

// NewInProcess creates an engine that calls pass.
func NewInProcess(pass PassFunc) *InProcess {
	return &InProcess{pass: pass}
}

// Run implements Engine.
func (e *InProcess) Run(ctx context.Context, s Script) (Result, error) {
	start := time.Now()
	err := e.pass(ctx, s)
	res := Result{OK: err == nil, Elapsed: time.Since(start)}
	if err == nil {
		return res, nil
	}
	res.ExitCode = 1
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, eris.Wrapf(err, "engine: run %s timed out after %s", s.RunID, res.Elapsed.Round(time.Millisecond))
	}
	return res, eris.Wrapf(err, "engine: run %s", s.RunID)
}
