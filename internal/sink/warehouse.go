package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/model"
)

// Warehouse appends records to a DuckDB table through the Appender API.
// Appends are not transactional: a failure part way may leave earlier rows in place.
type Warehouse struct {
	db    *sql.DB
	table string
}

// OpenWarehouse opens (or creates) the DuckDB database at path. An empty path
// opens an in-memory database.
func OpenWarehouse(path, table string) (*Warehouse, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrapf(err, "warehouse: create dir for %s", path)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, eris.Wrapf(err, "warehouse: open %s", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrapf(err, "warehouse: ping %s", path)
	}
	return &Warehouse{db: db, table: table}, nil
}

// WithTable returns a Warehouse on the same database writing to table.
func (w *Warehouse) WithTable(table string) *Warehouse {
	return &Warehouse{db: w.db, table: table}
}

// Name implements Sink.
func (w *Warehouse) Name() string { return "warehouse" }

// Ensure implements Sink.
func (w *Warehouse) Ensure(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, WarehouseDDL(w.table)); err != nil {
		return eris.Wrapf(err, "warehouse: ensure table %s", w.table)
	}
	return nil
}

// Append implements Sink.
func (w *Warehouse) Append(ctx context.Context, records []model.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "warehouse: acquire connection")
	}
	defer conn.Close() //nolint:errcheck

	schema, name := splitTable(w.table)
	var written int64
	err = conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return eris.Errorf("warehouse: unexpected raw conn type %T", raw)
		}

		app, err := duckdb.NewAppenderFromConn(driverConn, schema, name)
		if err != nil {
			return eris.Wrapf(err, "warehouse: create appender for %s", w.table)
		}

		row := make([]driver.Value, len(Schema))
		for i := range records {
			for j, v := range records[i].Values() {
				row[j] = v
			}
			if err := app.AppendRow(row...); err != nil {
				_ = app.Close()
				return eris.Wrapf(err, "warehouse: append row %d", i)
			}
			written++
		}
		return eris.Wrap(app.Close(), "warehouse: flush appender")
	})
	if err != nil {
		return written, err
	}
	return written, nil
}

// Count returns the number of rows in the table.
func (w *Warehouse) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := w.db.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteTable(w.table)).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "warehouse: count %s", w.table)
	}
	return n, nil
}

// Close closes the database.
func (w *Warehouse) Close() error {
	return w.db.Close()
}
