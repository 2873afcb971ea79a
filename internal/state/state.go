// Package state persists the producer's cycle counters so a restart can resume
// the batch sequence and the consolidation cadence instead of starting over.
package state

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Counters is the producer's loop state.
type Counters struct {
	// BatchSeq is the id of the last batch generated.
	BatchSeq int64
	// Published counts successful publishes and drives the sweep cadence.
	Published int64
}

// Store loads and saves Counters.
type Store interface {
	Load(ctx context.Context) (Counters, error)
	Save(ctx context.Context, c Counters) error
	Close() error
}

// Memory keeps counters for the life of the process only.
type Memory struct {
	mu sync.Mutex
	c  Counters
}

// NewMemory returns a zeroed in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Load returns the current counters.
func (m *Memory) Load(context.Context) (Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c, nil
}

// Save replaces the counters.
func (m *Memory) Save(_ context.Context, c Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c = c
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// SQLite keeps counters in a single-file database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn in WAL mode and creates its table.
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "state: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "state: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "state: migrate")
	}
	return &SQLite{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS producer_counters (
	name       TEXT PRIMARY KEY,
	value      INTEGER NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Load reads the saved counters. Missing rows read as zero.
func (s *SQLite) Load(ctx context.Context) (Counters, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM producer_counters`)
	if err != nil {
		return Counters{}, eris.Wrap(err, "state: load")
	}
	defer rows.Close() //nolint:errcheck

	var c Counters
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return Counters{}, eris.Wrap(err, "state: scan")
		}
		switch name {
		case "batch_seq":
			c.BatchSeq = value
		case "published":
			c.Published = value
		}
	}
	return c, eris.Wrap(rows.Err(), "state: load rows")
}

// Save upserts both counters in one transaction.
func (s *SQLite) Save(ctx context.Context, c Counters) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "state: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for name, value := range map[string]int64{"batch_seq": c.BatchSeq, "published": c.Published} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO producer_counters (name, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			name, value, now,
		); err != nil {
			return eris.Wrapf(err, "state: save %s", name)
		}
	}
	return eris.Wrap(tx.Commit(), "state: commit")
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Open returns a SQLite store when path is set and an in-memory store otherwise.
func Open(ctx context.Context, path string) (Store, error) {
	if path == "" {
		return NewMemory(), nil
	}
	return NewSQLite(ctx, path)
}
