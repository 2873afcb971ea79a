package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/db"
)

// Pass statuses recorded in ingest_log. A partial pass committed to the
// relational sink but either the warehouse write or some archive moves failed.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
)

// LogEntry is a row of ingest_log.
type LogEntry struct {
	ID            int64          `json:"id"`
	RunID         string         `json:"run_id"`
	Status        string         `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Artifacts     int            `json:"artifacts"`
	RowsLoaded    int64          `json:"rows_loaded"`
	Quarantined   int            `json:"quarantined"`
	WarehouseOK   *bool          `json:"warehouse_ok,omitempty"`
	RelationalOK  *bool          `json:"relational_ok,omitempty"`
	Archived      int            `json:"archived"`
	ArchiveFailed int            `json:"archive_failed"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PassSummary is what a finished pass writes back to its ingest_log row.
type PassSummary struct {
	Status        string
	Artifacts     int
	RowsLoaded    int64
	Quarantined   int
	WarehouseOK   bool
	RelationalOK  bool
	Archived      int
	ArchiveFailed int
	Error         string
	Metadata      map[string]any
}

// IngestLog records transform passes in the relational store.
type IngestLog struct {
	pool db.Pool
}

// NewIngestLog creates an IngestLog backed by pool.
func NewIngestLog(pool db.Pool) *IngestLog {
	return &IngestLog{pool: pool}
}

// Start inserts a running row for runID and returns its id.
func (l *IngestLog) Start(ctx context.Context, runID string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO ingest_log (run_id, status, started_at)
		 VALUES ($1, 'running', now()) RETURNING id`,
		runID,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "ingestlog: start run %s", runID)
	}
	return id, nil
}

// Finish closes a row with the pass summary.
func (l *IngestLog) Finish(ctx context.Context, id int64, s PassSummary) error {
	var metaJSON []byte
	if s.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(s.Metadata)
		if err != nil {
			return eris.Wrap(err, "ingestlog: marshal metadata")
		}
	}
	var errMsg *string
	if s.Error != "" {
		errMsg = &s.Error
	}

	_, err := l.pool.Exec(ctx,
		`UPDATE ingest_log
		 SET status = $1, completed_at = now(), artifacts = $2, rows_loaded = $3, quarantined = $4,
		     warehouse_ok = $5, relational_ok = $6, archived = $7, archive_failed = $8,
		     error = $9, metadata = $10
		 WHERE id = $11`,
		s.Status, s.Artifacts, s.RowsLoaded, s.Quarantined,
		s.WarehouseOK, s.RelationalOK, s.Archived, s.ArchiveFailed,
		errMsg, metaJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "ingestlog: finish run %d", id)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *IngestLog) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, run_id, status, started_at, completed_at, artifacts, rows_loaded, quarantined,
		        warehouse_ok, relational_ok, archived, archive_failed, error, metadata
		 FROM ingest_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ingestlog: list recent")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.Artifacts, &e.RowsLoaded, &e.Quarantined, &e.WarehouseOK, &e.RelationalOK,
			&e.Archived, &e.ArchiveFailed, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "ingestlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return nil, eris.Wrapf(err, "ingestlog: decode metadata for run %d", e.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "ingestlog: iterate entries")
}
