package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeSink records appends and fails on demand.
type fakeSink struct {
	name      string
	ensureErr error
	appendErr error
	ensured   int
	appended  [][]model.Record
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Ensure(context.Context) error {
	f.ensured++
	return f.ensureErr
}

func (f *fakeSink) Append(_ context.Context, records []model.Record) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.appended = append(f.appended, records)
	return int64(len(records)), nil
}

func (f *fakeSink) rows() int {
	n := 0
	for _, b := range f.appended {
		n += len(b)
	}
	return n
}

func records(n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{Date: "2024-01-01", StoreID: "S1", Category: "Toys"}
	}
	return out
}

func TestLoad_BothSucceed(t *testing.T) {
	wh, rel := &fakeSink{name: "warehouse"}, &fakeSink{name: "relational"}
	out := NewLoader(wh, rel).Load(context.Background(), records(3))

	assert.True(t, out.WarehouseOK)
	assert.True(t, out.RelationalOK)
	assert.Equal(t, int64(3), out.WarehouseRows)
	assert.Equal(t, int64(3), out.RelationalRows)
	assert.Equal(t, 1, wh.ensured, "warehouse table ensured before append")
	assert.Equal(t, 1, rel.ensured)
}

func TestLoad_RelationalFailsWarehouseSucceeds(t *testing.T) {
	wh := &fakeSink{name: "warehouse"}
	rel := &fakeSink{name: "relational", appendErr: errors.New("connection refused")}

	out := NewLoader(wh, rel).Load(context.Background(), records(2))
	assert.True(t, out.WarehouseOK)
	assert.False(t, out.RelationalOK)
	assert.EqualError(t, out.RelationalErr, "connection refused")
	assert.Equal(t, 2, wh.rows())
}

func TestLoad_WarehouseFailureDoesNotBlockRelational(t *testing.T) {
	for name, wh := range map[string]*fakeSink{
		"ensure": {name: "warehouse", ensureErr: errors.New("disk full")},
		"append": {name: "warehouse", appendErr: errors.New("io error")},
	} {
		t.Run(name, func(t *testing.T) {
			rel := &fakeSink{name: "relational"}
			out := NewLoader(wh, rel).Load(context.Background(), records(4))
			assert.False(t, out.WarehouseOK)
			assert.Error(t, out.WarehouseErr)
			assert.True(t, out.RelationalOK)
			assert.Equal(t, 4, rel.rows())
		})
	}
}

func TestLoad_NoWarehouse(t *testing.T) {
	rel := &fakeSink{name: "relational"}
	out := NewLoader(nil, rel).Load(context.Background(), records(1))
	assert.False(t, out.WarehouseOK)
	require.Error(t, out.WarehouseErr)
	assert.True(t, out.RelationalOK)
}
