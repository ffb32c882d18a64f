// Package api implements the control-plane HTTP surface (§6.3, §2.15):
// health, metrics, sync trigger, live config, and the webhook/workflow
// ingress endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/triway/triway/internal/config"
	"github.com/triway/triway/internal/controller"
	"github.com/triway/triway/internal/events"
	"github.com/triway/triway/internal/store"
)

// Server is the control-plane HTTP server.
type Server struct {
	controller *controller.Controller
	cfgStore   *config.Store
	st         *store.Store
	webhook    *events.WebhookHandler
	workflow   *events.WorkflowHandler
	log        *slog.Logger

	server    *http.Server
	startedAt time.Time

	mu         sync.RWMutex
	lastSyncAt time.Time
}

// New builds a Server. webhook/workflow may be nil if those ingress paths
// are not configured.
func New(ctrl *controller.Controller, cfgStore *config.Store, st *store.Store, webhook *events.WebhookHandler, workflow *events.WorkflowHandler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		controller: ctrl,
		cfgStore:   cfgStore,
		st:         st,
		webhook:    webhook,
		workflow:   workflow,
		log:        log,
		startedAt:  time.Now(),
	}
}

// RecordSync should be called by the caller's RunFunc after each sync pass
// completes, so /health can report last_sync_at.
func (s *Server) RecordSync(at time.Time) {
	s.mu.Lock()
	s.lastSyncAt = at
	s.mu.Unlock()
}

// Start builds the mux and listens on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("POST /sync/trigger", s.handleTriggerSync)
	mux.HandleFunc("POST /config", s.handleConfigUpdate)
	mux.HandleFunc("GET /divergence", s.handleDivergence)
	if s.webhook != nil {
		mux.Handle("POST /webhook/tracker", s.webhook)
	}
	if s.workflow != nil {
		mux.Handle("POST /workflow/trigger", s.workflow)
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withLogging(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("starting control-plane server", "addr", addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
