// Package status tracks recent cycle outcomes and serves them over HTTP.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cycle is the outcome of one producer or consumer cycle.
type Cycle struct {
	Kind    string        `json:"kind"`
	Cycle   int           `json:"cycle"`
	RunID   string        `json:"run_id"`
	OK      bool          `json:"ok"`
	Rows    int           `json:"rows"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Error   string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

// Totals counts cycles by outcome for one kind.
type Totals struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// Snapshot is the JSON body of GET /status.
type Snapshot struct {
	Started time.Time         `json:"started"`
	Last    map[string]Cycle  `json:"last"`
	Totals  map[string]Totals `json:"totals"`
}

// Tracker records the latest cycle per kind. A nil Tracker ignores records.
type Tracker struct {
	mu      sync.RWMutex
	started time.Time
	last    map[string]Cycle
	totals  map[string]Totals
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		started: time.Now().UTC(),
		last:    map[string]Cycle{},
		totals:  map[string]Totals{},
	}
}

// Record stores c as the latest cycle of its kind.
func (t *Tracker) Record(c Cycle) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last[c.Kind] = c
	tot := t.totals[c.Kind]
	if c.OK {
		tot.OK++
	} else {
		tot.Failed++
	}
	t.totals[c.Kind] = tot
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Started: t.started,
		Last:    make(map[string]Cycle, len(t.last)),
		Totals:  make(map[string]Totals, len(t.totals)),
	}
	for k, v := range t.last {
		s.Last[k] = v
	}
	for k, v := range t.totals {
		s.Totals[k] = v
	}
	return s
}

// NewRouter exposes GET /healthz and GET /status.
func NewRouter(t *Tracker) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, t.Snapshot())
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting status server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "status: listen")
	}
	return nil
}
