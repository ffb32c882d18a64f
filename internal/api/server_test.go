package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/triway/triway/internal/config"
	"github.com/triway/triway/internal/controller"
	"github.com/triway/triway/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.NewStore(db)
}

func newTestServer(t *testing.T, run controller.RunFunc) (*Server, *httptest.Server) {
	t.Helper()
	st := newTestStore(t)
	cfgStore, err := config.Load()
	require.NoError(t, err)
	if run == nil {
		run = func(ctx context.Context) error { return nil }
	}
	ctrl := controller.New(controller.Config{Debounce: 500 * time.Millisecond, HardTimeout: time.Second}, run, nil)
	s := New(ctrl, cfgStore, st, nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /sync/trigger", s.handleTriggerSync)
	mux.HandleFunc("POST /config", s.handleConfigUpdate)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthReportsOKWithZeroProjects(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, 0, body.ProjectsCount)
	require.False(t, body.SyncInProgress)
}

func TestTriggerSyncReturnsAcceptedThenDeniedOnBurst(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp1, err := http.Post(ts.URL+"/sync/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp1.Body.Close()
	require.Equal(t, http.StatusAccepted, resp1.StatusCode)

	resp2, err := http.Post(ts.URL+"/sync/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestConfigUpdateAppliesPartialChange(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/config", "application/json", strings.NewReader(`{"max_workers": 9}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg config.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	require.Equal(t, 9, cfg.MaxWorkers)
}
