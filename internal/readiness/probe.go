// Package readiness gates process startup on a TCP dependency being reachable.
package readiness

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retail-pipeline/internal/config"
	"github.com/sells-group/retail-pipeline/internal/resilience"
)

// Probe checks that host:port accepts TCP connections.
type Probe struct {
	Addr        string
	Attempts    int
	Backoff     time.Duration
	DialTimeout time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New builds a Probe from configuration.
func New(cfg config.ReadinessConfig) *Probe {
	return &Probe{
		Addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Attempts:    cfg.Attempts,
		Backoff:     time.Duration(cfg.BackoffSecs) * time.Second,
		DialTimeout: 5 * time.Second,
	}
}

// Wait dials until a connection succeeds, retrying every Backoff up to
// Attempts times. It returns an error once attempts are exhausted or ctx ends.
func (p *Probe) Wait(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "readiness"), zap.String("addr", p.Addr))

	dial := p.dial
	if dial == nil {
		d := &net.Dialer{Timeout: p.DialTimeout}
		dial = d.DialContext
	}

	cfg := resilience.FixedRetryConfig(p.Attempts, p.Backoff)
	cfg.OnRetry = func(attempt int, err error) {
		log.Info("dependency not reachable yet",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.Attempts),
			zap.Error(err),
		)
	}

	start := time.Now()
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		conn, err := dial(ctx, "tcp", p.Addr)
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		return eris.Wrapf(err, "readiness: %s unreachable after %d attempts", p.Addr, p.Attempts)
	}

	log.Info("dependency reachable", zap.Duration("elapsed", time.Since(start)))
	return nil
}
