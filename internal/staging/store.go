// Package staging abstracts the shared hierarchical store the producer and the
// ingestion pipeline hand batches over through. Keys are slash-separated and
// relative to the store root, e.g. "input/retail_batch_7_20240601_103000.csv".
package staging

import (
	"context"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retail-pipeline/internal/config"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = eris.New("staging: not found")

// copyingSuffix marks in-flight uploads. Together with the leading dot it keeps
// partial artifacts out of List results.
const copyingSuffix = "._COPYING_"

// Object describes one stored artifact.
type Object struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Name returns the base name of the object key.
func (o Object) Name() string { return path.Base(o.Key) }

// Store is the minimal set of operations the pipeline needs from a staging backend.
type Store interface {
	// Put uploads the local file at localPath to key. The object becomes visible
	// under key only once fully written.
	Put(ctx context.Context, key, localPath string) error
	// List returns the files directly under prefix, sorted by key. A missing
	// prefix yields an empty list.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Open returns a reader for key. The caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Move relocates src to dst.
	Move(ctx context.Context, src, dst string) error
}

// Open builds the backend named by cfg.Backend, wrapped with a rate limiter
// when cfg.OpsPerSec is positive.
func Open(ctx context.Context, cfg config.StagingConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "local", "":
		s, err = NewLocal(cfg.Root)
	case "s3":
		s = NewS3(cfg.S3)
	case "ftp":
		s = NewFTP(cfg.FTP)
	case "webhdfs":
		s, err = NewWebHDFS(cfg.WebHDFS)
	default:
		return nil, eris.Errorf("staging: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(s, cfg.OpsPerSec), nil
}

// Join builds a key from a prefix such as "input/" and an artifact name.
func Join(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Match reports whether the base name of key matches the glob pattern.
func Match(pattern, key string) (bool, error) {
	ok, err := path.Match(pattern, path.Base(key))
	if err != nil {
		return false, eris.Wrapf(err, "staging: bad pattern %q", pattern)
	}
	return ok, nil
}

// hidden reports whether a base name belongs to an in-flight or private file.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, copyingSuffix)
}

// tempName returns the in-flight name used while uploading to key.
func tempName(key string) string {
	dir, name := path.Split(key)
	return dir + "." + name + copyingSuffix
}

func sortObjects(objs []Object) {
	slices.SortFunc(objs, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })
}
