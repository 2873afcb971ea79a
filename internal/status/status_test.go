package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Record(t *testing.T) {
	tr := NewTracker()
	tr.Record(Cycle{Kind: "produce", Cycle: 1, OK: true, Rows: 80})
	tr.Record(Cycle{Kind: "produce", Cycle: 2, OK: false, Error: "store down"})
	tr.Record(Cycle{Kind: "consume", Cycle: 1, OK: true, Rows: 210})

	s := tr.Snapshot()
	assert.Equal(t, 2, s.Last["produce"].Cycle)
	assert.Equal(t, "store down", s.Last["produce"].Error)
	assert.Equal(t, Totals{OK: 1, Failed: 1}, s.Totals["produce"])
	assert.Equal(t, Totals{OK: 1}, s.Totals["consume"])
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tr *Tracker
	tr.Record(Cycle{Kind: "produce"})
}

func TestRouter(t *testing.T) {
	tr := NewTracker()
	tr.Record(Cycle{Kind: "consume", Cycle: 7, OK: true, RunID: "abc"})
	h := NewRouter(tr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 7, s.Last["consume"].Cycle)
	assert.Equal(t, "abc", s.Last["consume"].RunID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, NewRouter(NewTracker())) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close() //nolint:errcheck
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
