package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/sink"
)

var errNoWarehouse = eris.New("ingest: warehouse unavailable")

// LoadOutcome reports each sink independently. Only RelationalOK decides
// whether the pass counts as processed.
type LoadOutcome struct {
	WarehouseOK    bool
	RelationalOK   bool
	WarehouseRows  int64
	RelationalRows int64
	WarehouseErr   error
	RelationalErr  error
}

// Loader writes a normalized dataset to the warehouse and then the relational
// sink. A warehouse failure never prevents the relational attempt.
type Loader struct {
	warehouse  sink.Sink
	relational sink.Sink
	log        *zap.Logger
}

// NewLoader creates a Loader. A nil warehouse is reported as a failed
// warehouse write on every load.
func NewLoader(warehouse, relational sink.Sink) *Loader {
	return &Loader{
		warehouse:  warehouse,
		relational: relational,
		log:        zap.L().With(zap.String("component", "ingest.loader")),
	}
}

// Load appends records to both sinks.
func (l *Loader) Load(ctx context.Context, records []model.Record) LoadOutcome {
	var out LoadOutcome

	if l.warehouse == nil {
		out.WarehouseErr = errNoWarehouse
	} else {
		out.WarehouseRows, out.WarehouseErr = write(ctx, l.warehouse, records)
	}
	out.WarehouseOK = out.WarehouseErr == nil
	if !out.WarehouseOK {
		l.log.Warn("warehouse write failed, continuing with relational sink",
			zap.Int64("rows_written", out.WarehouseRows),
			zap.Error(out.WarehouseErr),
		)
	}

	out.RelationalRows, out.RelationalErr = write(ctx, l.relational, records)
	out.RelationalOK = out.RelationalErr == nil
	if !out.RelationalOK {
		l.log.Error("relational write failed", zap.Error(out.RelationalErr))
	}
	return out
}

func write(ctx context.Context, s sink.Sink, records []model.Record) (int64, error) {
	if err := s.Ensure(ctx); err != nil {
		return 0, err
	}
	return s.Append(ctx, records)
}
