package ingest

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/staging"
)

// ArchiveResult lists which keys moved and which stayed behind.
type ArchiveResult struct {
	Moved  []string
	Failed []string
}

// Archiver moves ingested artifacts from the input prefix to the processed prefix.
type Archiver struct {
	store     staging.Store
	processed string
}

// NewArchiver creates an Archiver writing under processed.
func NewArchiver(store staging.Store, processed string) *Archiver {
	return &Archiver{store: store, processed: processed}
}

// Archive moves every key. A failed move is logged and left in place; the
// artifact will be read again by a later pass.
func (a *Archiver) Archive(ctx context.Context, keys []string) ArchiveResult {
	log := zap.L().With(zap.String("component", "ingest.archive"))

	var res ArchiveResult
	for _, key := range keys {
		dst := staging.Join(a.processed, path.Base(key))
		if err := a.store.Move(ctx, key, dst); err != nil {
			log.Warn("archive move failed, artifact will be reprocessed",
				zap.String("key", key),
				zap.Bool("duplicate_risk", true),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, key)
			continue
		}
		res.Moved = append(res.Moved, key)
	}
	return res
}
