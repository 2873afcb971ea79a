package sink

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/db"
	"github.com/sells-group/retail-pipeline/internal/model"
)

// Relational appends records to a Postgres table with COPY. Its success is
// what decides whether a transform pass archives its inputs.
type Relational struct {
	pool  db.Pool
	table string
}

// NewRelational creates a relational sink writing to table.
func NewRelational(pool db.Pool, table string) *Relational {
	return &Relational{pool: pool, table: table}
}

// Name implements Sink.
func (r *Relational) Name() string { return "relational" }

// Ensure implements Sink.
func (r *Relational) Ensure(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, RelationalDDL(r.table)); err != nil {
		return eris.Wrapf(err, "relational: ensure table %s", r.table)
	}
	return nil
}

// Append implements Sink.
func (r *Relational) Append(ctx context.Context, records []model.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i := range records {
		rows[i] = records[i].Values()
	}
	n, err := db.CopyFrom(ctx, r.pool, r.table, model.Columns, rows)
	if err != nil {
		return n, eris.Wrap(err, "relational: append")
	}
	return n, nil
}
