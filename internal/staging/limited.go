package staging

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limited throttles every store operation through a shared token bucket.
type Limited struct {
	Store
	limiter *rate.Limiter
}

// NewLimited wraps s so it performs at most opsPerSec operations per second.
// A non-positive rate returns s unchanged.
func NewLimited(s Store, opsPerSec float64) Store {
	if opsPerSec <= 0 {
		return s
	}
	burst := int(opsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &Limited{Store: s, limiter: rate.NewLimiter(rate.Limit(opsPerSec), burst)}
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "staging: rate limit wait")
	}
	return nil
}

// Put waits for a token, then delegates.
func (l *Limited) Put(ctx context.Context, key, localPath string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Store.Put(ctx, key, localPath)
}

// List waits for a token, then delegates.
func (l *Limited) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Store.List(ctx, prefix)
}

// Open waits for a token, then delegates.
func (l *Limited) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.Store.Open(ctx, key)
}

// Move waits for a token, then delegates.
func (l *Limited) Move(ctx context.Context, src, dst string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.Store.Move(ctx, src, dst)
}
