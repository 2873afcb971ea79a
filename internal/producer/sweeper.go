package producer

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/staging"
)

// SweepResult summarizes one consolidation pass.
type SweepResult struct {
	Pending  int // artifacts under the input prefix before the sweep
	Moved    int
	TooYoung int // excess artifacts left in place by the age guard
	Failed   int
}

// Sweeper bounds the number of pending artifacts by moving the oldest excess to
// the processed prefix, whether or not they were ever ingested.
type Sweeper struct {
	store           staging.Store
	inputPrefix     string
	processedPrefix string
	retention       int
	minAge          time.Duration
	now             func() time.Time
}

// NewSweeper creates a Sweeper keeping at most retention pending artifacts.
// Artifacts younger than minAge are never moved, so a consumer pass that
// listed them can still archive them.
func NewSweeper(store staging.Store, inputPrefix, processedPrefix string, retention int, minAge time.Duration) *Sweeper {
	return &Sweeper{
		store:           store,
		inputPrefix:     inputPrefix,
		processedPrefix: processedPrefix,
		retention:       retention,
		minAge:          minAge,
		now:             time.Now,
	}
}

// Sweep runs one consolidation pass. Listing failures are returned; individual
// move failures are logged and counted.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	log := zap.L().With(zap.String("component", "producer.sweeper"))

	objs, err := s.store.List(ctx, s.inputPrefix)
	if err != nil {
		return SweepResult{}, eris.Wrap(err, "producer: list pending artifacts")
	}

	res := SweepResult{Pending: len(objs)}
	excess := len(objs) - s.retention
	if excess <= 0 {
		log.Debug("nothing to consolidate", zap.Int("pending", len(objs)), zap.Int("retention", s.retention))
		return res, nil
	}

	oldestFirst(objs)
	cutoff := s.now().Add(-s.minAge)

	for _, o := range objs[:excess] {
		if o.ModTime.After(cutoff) {
			res.TooYoung++
			continue
		}
		dst := staging.Join(s.processedPrefix, o.Name())
		if err := s.store.Move(ctx, o.Key, dst); err != nil {
			log.Warn("consolidation move failed", zap.String("key", o.Key), zap.Error(err))
			res.Failed++
			continue
		}
		res.Moved++
	}

	log.Info("consolidation complete",
		zap.Int("pending", res.Pending),
		zap.Int("retention", s.retention),
		zap.Int("moved", res.Moved),
		zap.Int("too_young", res.TooYoung),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// oldestFirst orders by modification time, then key. Keys alone do not sort
// by age because batch ids are not zero-padded.
func oldestFirst(objs []staging.Object) {
	slices.SortStableFunc(objs, func(a, b staging.Object) int {
		if c := a.ModTime.Compare(b.ModTime); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
}
