// Package producer manufactures synthetic batches and hands them over to the
// staging store: generate, publish, and periodically consolidate.
package producer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/model"
	"github.com/sells-group/retail-pipeline/internal/staging"
	"github.com/sells-group/retail-pipeline/internal/tabular"
)

// PublishResult reports where a batch ended up.
type PublishResult struct {
	OK bool
	// ArtifactPath is the store key on success, or the kept scratch file on failure.
	ArtifactPath string
	Rows         int
}

// Publisher serializes batches to a scratch file and puts them under the input prefix.
type Publisher struct {
	store       staging.Store
	inputPrefix string
	scratchDir  string
}

// NewPublisher creates a Publisher.
func NewPublisher(store staging.Store, inputPrefix, scratchDir string) *Publisher {
	return &Publisher{store: store, inputPrefix: inputPrefix, scratchDir: scratchDir}
}

// Publish writes b as CSV with canonical headers and uploads it. On success the
// scratch file is removed. On failure it is left in place and the error is
// returned; the batch is not resent.
func (p *Publisher) Publish(ctx context.Context, b *model.Batch) (PublishResult, error) {
	name := b.ArtifactName()
	local := filepath.Join(p.scratchDir, name)

	if err := writeBatch(local, b); err != nil {
		return PublishResult{ArtifactPath: local}, err
	}

	key := staging.Join(p.inputPrefix, name)
	if err := p.store.Put(ctx, key, local); err != nil {
		return PublishResult{ArtifactPath: local, Rows: len(b.Records)}, eris.Wrapf(err, "producer: put %s", key)
	}

	if err := os.Remove(local); err != nil {
		return PublishResult{OK: true, ArtifactPath: key, Rows: len(b.Records)}, eris.Wrapf(err, "producer: remove scratch %s", local)
	}
	return PublishResult{OK: true, ArtifactPath: key, Rows: len(b.Records)}, nil
}

func writeBatch(path string, b *model.Batch) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "producer: create scratch dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "producer: create %s", path)
	}

	rows := make([][]string, len(b.Records))
	for i := range b.Records {
		rows[i] = b.Records[i].Strings()
	}
	if err := tabular.WriteCSV(f, model.CanonicalColumns(model.Columns), rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "producer: write %s", path)
	}
	return eris.Wrapf(f.Close(), "producer: close %s", path)
}
