package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/staging"
	"github.com/sells-group/retail-pipeline/internal/tabular"
)

// JobConfig says where a pass looks for work.
type JobConfig struct {
	InputPrefix string
	// Pattern is a glob matched against artifact base names, e.g. "retail_batch_*".
	Pattern string
}

// Report is the outcome of one transform pass.
type Report struct {
	RunID       string
	Artifacts   []string
	Skipped     []string
	Rows        int
	Quarantined int
	Dropped     []string
	Outcome     LoadOutcome
	Archive     ArchiveResult
	// DuplicateRisk is set when some rows reached a sink while their inputs
	// stay under the input prefix, so a later pass will load them again.
	DuplicateRisk bool
	Elapsed       time.Duration
}

// Job is a single transform pass: discover, normalize, load, archive.
type Job struct {
	store    staging.Store
	cfg      JobConfig
	loader   *Loader
	archiver *Archiver
	ilog     *IngestLog
	now      func() time.Time
}

// NewJob creates a Job. ilog may be nil to skip the ingest_log bookkeeping.
func NewJob(store staging.Store, cfg JobConfig, loader *Loader, archiver *Archiver, ilog *IngestLog) *Job {
	return &Job{
		store:    store,
		cfg:      cfg,
		loader:   loader,
		archiver: archiver,
		ilog:     ilog,
		now:      time.Now,
	}
}

// Run executes one pass. It returns an error when nothing could be committed
// to the relational sink; warehouse and archive failures are only logged.
func (j *Job) Run(ctx context.Context, runID string) (*Report, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", runID))
	start := time.Now()
	rep := &Report{RunID: runID}
	defer func() { rep.Elapsed = time.Since(start) }()

	keys, err := j.discover(ctx)
	if err != nil {
		return rep, err
	}
	if len(keys) == 0 {
		log.Info("no pending artifacts", zap.String("pattern", j.cfg.Pattern))
		return rep, nil
	}

	logID := j.startLog(ctx, log, runID)

	records, err := j.read(ctx, log, keys, rep)
	if err != nil {
		j.finishLog(ctx, log, logID, rep, err)
		return rep, err
	}
	rep.Rows = len(records)

	rep.Outcome = j.loader.Load(ctx, records)
	if !rep.Outcome.RelationalOK {
		rep.DuplicateRisk = rep.Outcome.WarehouseOK && rep.Outcome.WarehouseRows > 0
		err := eris.Wrap(rep.Outcome.RelationalErr, "ingest: relational write")
		if rep.DuplicateRisk {
			log.Warn("warehouse rows committed but inputs not archived",
				zap.Bool("duplicate_risk", true),
				zap.Int64("warehouse_rows", rep.Outcome.WarehouseRows),
			)
		}
		j.finishLog(ctx, log, logID, rep, err)
		return rep, err
	}

	rep.Archive = j.archiver.Archive(ctx, rep.Artifacts)
	if len(rep.Archive.Failed) > 0 {
		rep.DuplicateRisk = true
	}
	j.finishLog(ctx, log, logID, rep, nil)

	log.Info("transform pass complete",
		zap.Int("artifacts", len(rep.Artifacts)),
		zap.Int("rows", rep.Rows),
		zap.Int("quarantined", rep.Quarantined),
		zap.Bool("warehouse_ok", rep.Outcome.WarehouseOK),
		zap.Int("archived", len(rep.Archive.Moved)),
		zap.Int("archive_failed", len(rep.Archive.Failed)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rep, nil
}

func (j *Job) discover(ctx context.Context) ([]string, error) {
	objs, err := j.store.List(ctx, j.cfg.InputPrefix)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list pending artifacts")
	}
	var keys []string
	for _, o := range objs {
		ok, err := staging.Match(j.cfg.Pattern, o.Key)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: match pattern")
		}
		if ok {
			keys = append(keys, o.Key)
		}
	}
	return keys, nil
}

// read normalizes every key into one dataset. Keys that vanished since the
// listing (e.g. consolidated by the producer) are skipped.
func (j *Job) read(ctx context.Context, log *zap.Logger, keys []string, rep *Report) ([]model.Record, error) {
	today := j.now()
	var records []model.Record
	dropped := map[string]bool{}

	for _, key := range keys {
		tbl, err := j.readTable(ctx, key)
		if eris.Is(err, staging.ErrNotFound) {
			log.Warn("artifact disappeared before read", zap.String("key", key))
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		if err != nil {
			return nil, err
		}

		n, err := Normalize(tbl, today)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: normalize %s", key)
		}
		if n.Quarantined > 0 {
			log.Warn("rows wider than header quarantined", zap.String("key", key), zap.Int("rows", n.Quarantined))
		}
		for _, col := range n.Dropped {
			if !dropped[col] {
				dropped[col] = true
				rep.Dropped = append(rep.Dropped, col)
				log.Warn("dropping column outside fixed schema", zap.String("column", col), zap.String("key", key))
			}
		}

		rep.Artifacts = append(rep.Artifacts, key)
		rep.Quarantined += n.Quarantined
		records = append(records, n.Records...)
	}
	return records, nil
}

func (j *Job) readTable(ctx context.Context, key string) (*tabular.Table, error) {
	rc, err := j.store.Open(ctx, key)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", key)
	}
	defer rc.Close() //nolint:errcheck

	tbl, err := tabular.ReadCSV(ctx, rc)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", key)
	}
	return tbl, nil
}

func (j *Job) startLog(ctx context.Context, log *zap.Logger, runID string) int64 {
	if j.ilog == nil {
		return 0
	}
	id, err := j.ilog.Start(ctx, runID)
	if err != nil {
		log.Warn("ingest log unavailable", zap.Error(err))
		return 0
	}
	return id
}

func (j *Job) finishLog(ctx context.Context, log *zap.Logger, id int64, rep *Report, passErr error) {
	if j.ilog == nil || id == 0 {
		return
	}
	s := PassSummary{
		Status:        StatusComplete,
		Artifacts:     len(rep.Artifacts),
		RowsLoaded:    rep.Outcome.RelationalRows,
		Quarantined:   rep.Quarantined,
		WarehouseOK:   rep.Outcome.WarehouseOK,
		RelationalOK:  rep.Outcome.RelationalOK,
		Archived:      len(rep.Archive.Moved),
		ArchiveFailed: len(rep.Archive.Failed),
		Metadata: map[string]any{
			"artifacts":      rep.Artifacts,
			"duplicate_risk": rep.DuplicateRisk,
		},
	}
	if len(rep.Dropped) > 0 {
		s.Metadata["dropped_columns"] = rep.Dropped
	}
	switch {
	case passErr != nil:
		s.Status = StatusFailed
		s.Error = passErr.Error()
	case len(rep.Archive.Failed) > 0:
		s.Status = StatusPartial
		s.Error = fmt.Sprintf("archive failed for %d of %d artifacts", len(rep.Archive.Failed), len(rep.Artifacts))
		if rep.Outcome.WarehouseErr != nil {
			s.Error += "; " + rep.Outcome.WarehouseErr.Error()
		}
	case !rep.Outcome.WarehouseOK:
		s.Status = StatusPartial
		if rep.Outcome.WarehouseErr != nil {
			s.Error = rep.Outcome.WarehouseErr.Error()
		}
	}
	if err := j.ilog.Finish(ctx, id, s); err != nil {
		log.Warn("failed to finish ingest log row", zap.Int64("log_id", id), zap.Error(err))
	}
}
