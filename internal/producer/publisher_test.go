package producer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/staging"
)

// flakyStore wraps a real store and fails selected operations.
type flakyStore struct {
	staging.Store
	putErr  error
	listErr error
	moveErr map[string]error
}

func (f *flakyStore) Put(ctx context.Context, key, localPath string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, localPath)
}

func (f *flakyStore) List(ctx context.Context, prefix string) ([]staging.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.List(ctx, prefix)
}

func (f *flakyStore) Move(ctx context.Context, src, dst string) error {
	if err := f.moveErr[src]; err != nil {
		return err
	}
	return f.Store.Move(ctx, src, dst)
}

func newLocal(t *testing.T) *staging.Local {
	t.Helper()
	s, err := staging.NewLocal(filepath.Join(t.TempDir(), "staging"))
	require.NoError(t, err)
	return s
}

func testBatch() *model.Batch {
	return &model.Batch{
		ID:        3,
		CreatedAt: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		Records: []model.Record{
			{Date: "2024-06-01", StoreID: "S001", ProductID: "P0001", Category: "Toys", Region: "North",
				InventoryLevel: 10, Price: 3.5, HolidayPromotion: 1, Seasonality: "Summer", WeatherCondition: "Sunny"},
			{Date: "2024-06-01", StoreID: "S002", ProductID: "P0002", Category: "Garden", Region: "Coastal"},
		},
	}
}

func TestPublish_Success(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	scratch := t.TempDir()
	p := NewPublisher(store, "input/", scratch)

	res, err := p.Publish(ctx, testBatch())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "input/retail_batch_3_20240601_103000.csv", res.ArtifactPath)
	assert.Equal(t, 2, res.Rows)

	_, statErr := os.Stat(filepath.Join(scratch, "retail_batch_3_20240601_103000.csv"))
	assert.True(t, os.IsNotExist(statErr), "scratch file removed after success")

	rc, err := store.Open(ctx, res.ArtifactPath)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(model.Columns, ","), lines[0])
	assert.Equal(t, "2024-06-01,S001,P0001,Toys,North,10,0,0,0,3.5,0,Sunny,1,0,Summer", lines[1])
}

func TestPublish_StoreFailureKeepsScratch(t *testing.T) {
	scratch := t.TempDir()
	store := &flakyStore{Store: newLocal(t), putErr: errors.New("namenode unreachable")}
	p := NewPublisher(store, "input/", scratch)

	res, err := p.Publish(context.Background(), testBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namenode unreachable")
	assert.False(t, res.OK)

	local := filepath.Join(scratch, "retail_batch_3_20240601_103000.csv")
	assert.Equal(t, local, res.ArtifactPath)
	_, statErr := os.Stat(local)
	assert.NoError(t, statErr, "scratch file kept after failure")
}

func TestPublish_EmptyBatchStillHasHeader(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	p := NewPublisher(store, "input/", filepath.Join(t.TempDir(), "nested", "scratch"))

	res, err := p.Publish(ctx, &model.Batch{ID: 1, CreatedAt: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)

	objs, err := store.List(ctx, "input/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Positive(t, objs[0].Size)
}
