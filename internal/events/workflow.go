package events

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/triway/triway/internal/controller"
)

// WorkflowHandler exposes an optional trigger endpoint for an external
// workflow system (e.g. a CI pipeline finishing a merge) to ask for a sync
// without going through the tracker's own webhook. It shares trigger_sync
// with every other ingress path; it is not a separate queue.
type WorkflowHandler struct {
	Bus Bus
	Log *slog.Logger
}

// NewWorkflowHandler builds a WorkflowHandler.
func NewWorkflowHandler(bus Bus, log *slog.Logger) *WorkflowHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WorkflowHandler{Bus: bus, Log: log}
}

// ServeHTTP implements http.Handler for POST /workflow/trigger.
func (h *WorkflowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Source string `json:"source"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	source := "workflow"
	if payload.Source != "" {
		source = "workflow:" + payload.Source
	}
	result := h.Bus.TriggerSync(source)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resultToStatus(result))
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": result == controller.Accepted})
}
