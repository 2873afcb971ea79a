package staging

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Local is a Store backed by a directory tree. Moves are single renames, so an
// artifact is always under exactly one prefix.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns a Local store.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "staging: create root %s", root)
	}
	return &Local{root: root}, nil
}

// Root returns the directory the store lives in.
func (l *Local) Root() string { return l.root }

func (l *Local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Put copies localPath into a hidden temp file beside the target, then renames it into place.
func (l *Local) Put(_ context.Context, key, localPath string) error {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "staging: mkdir for %s", key)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return eris.Wrapf(err, "staging: open %s", localPath)
	}
	defer src.Close() //nolint:errcheck

	tmp := l.path(tempName(key))
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "staging: create %s", tmp)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "staging: write %s", key)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "staging: close %s", key)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "staging: publish %s", key)
	}
	return nil
}

// List returns regular, non-hidden files directly under prefix.
func (l *Local) List(_ context.Context, prefix string) ([]Object, error) {
	dir := strings.Trim(prefix, "/")
	entries, err := os.ReadDir(l.path(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "staging: list %s", prefix)
	}

	objs := make([]Object, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || hidden(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Moved away between ReadDir and Info.
			continue
		}
		objs = append(objs, Object{
			Key:     Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sortObjects(objs)
	return objs, nil
}

// Open opens key for reading.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "staging: open %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "staging: open %s", key)
	}
	return f, nil
}

// Move renames src to dst, creating the destination directory as needed.
func (l *Local) Move(_ context.Context, src, dst string) error {
	to := l.path(dst)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return eris.Wrapf(err, "staging: mkdir for %s", dst)
	}
	err := os.Rename(l.path(src), to)
	if errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(ErrNotFound, "staging: move %s", src)
	}
	if err != nil {
		return eris.Wrapf(err, "staging: move %s to %s", src, dst)
	}
	return nil
}
