package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/triway/triway/internal/config"
	"github.com/triway/triway/internal/controller"
)

type healthResponse struct {
	Status         string     `json:"status"`
	UptimeSeconds  float64    `json:"uptime_s"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	SyncInProgress bool       `json:"sync_in_progress"`
	ProjectsCount  int        `json:"projects_count"`
}

// handleHealth implements GET /health (§6.3): 200 while the store is
// reachable, 503 if it isn't.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	projects, err := s.st.ListProjects()
	status := "ok"
	code := http.StatusOK
	if err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		s.log.Error("health check: state store unreachable", "error", err)
	}

	s.mu.RLock()
	var lastSync *time.Time
	if !s.lastSyncAt.IsZero() {
		t := s.lastSyncAt
		lastSync = &t
	}
	s.mu.RUnlock()

	resp := healthResponse{
		Status:         status,
		UptimeSeconds:  time.Since(s.startedAt).Seconds(),
		LastSyncAt:     lastSync,
		SyncInProgress: s.controller.InProgress(),
		ProjectsCount:  len(projects),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleTriggerSync implements POST /sync/trigger: 202 Accepted if a run
// was scheduled (or a resync was queued against an in-progress run), 409
// Denied if the trigger landed inside an active debounce window.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "api"
	}

	switch s.controller.TriggerSync(source) {
	case controller.Accepted:
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	default: // controller.Denied
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "denied"})
	}
}

// handleDivergence implements GET /divergence: the structured report the
// hourly reconciliation timer produced on its most recent run. 404 if no
// reconciliation has completed yet.
func (s *Server) handleDivergence(w http.ResponseWriter, r *http.Request) {
	runs, err := s.st.RecentSyncRuns(1)
	if err != nil {
		http.Error(w, `{"error":"state store unreachable"}`, http.StatusServiceUnavailable)
		return
	}
	if len(runs) == 0 || runs[0].DivergenceJSON == "" {
		http.Error(w, `{"error":"no reconciliation run yet"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(runs[0].DivergenceJSON))
}

type configUpdateRequest struct {
	SyncIntervalMS *int  `json:"sync_interval_ms"`
	MaxWorkers     *int  `json:"max_workers"`
	SyncParallel   *bool `json:"sync_parallel"`
	DryRun         *bool `json:"dry_run"`
}

// handleConfigUpdate implements POST /config: a live, partial update of the
// subset of options §6.3 names as control-endpoint-adjustable.
func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	next := s.cfgStore.Apply(config.Update{
		SyncIntervalMS: req.SyncIntervalMS,
		MaxWorkers:     req.MaxWorkers,
		SyncParallel:   req.SyncParallel,
		DryRun:         req.DryRun,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(next)
}
