// Package events normalizes the four ways a sync can be triggered outside
// the periodic scheduler into a single call to the Sync Controller's
// trigger_sync: an inbound tracker webhook, the board's SSE event stream, a
// local file-system change, and an external workflow trigger (§4.12).
package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/triway/triway/internal/controller"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MiB

// Bus is the subset of internal/controller.Controller the event handlers
// need.
type Bus interface {
	TriggerSync(source string) controller.TriggerResult
}

// WebhookHandler verifies and handles inbound tracker webhooks at
// POST /webhook/tracker. Each verified delivery triggers a sync and calls
// the onLive callback passed to NewWebhookHandler, if any; the handler does
// not itself pause periodic polling.
type WebhookHandler struct {
	Secret string
	Bus    Bus
	Log    *slog.Logger

	live func()
}

// NewWebhookHandler builds a WebhookHandler. onLive is called on every
// successfully verified delivery so the scheduler can suppress polling.
func NewWebhookHandler(secret string, bus Bus, onLive func(), log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{Secret: secret, Bus: bus, Log: log, live: onLive}
}

// ServeHTTP implements http.Handler for POST /webhook/tracker.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if h.Secret != "" {
		signature := r.Header.Get("X-Webhook-Signature-256")
		if err := validateHMAC(body, signature, h.Secret); err != nil {
			h.Log.Warn("webhook signature rejected")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var payload struct {
		Event             string `json:"event"`
		ProjectIdentifier string `json:"project_identifier"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if h.live != nil {
		h.live()
	}

	source := "webhook-tracker"
	if payload.ProjectIdentifier != "" {
		source = "webhook-tracker:" + payload.ProjectIdentifier
	}
	result := h.Bus.TriggerSync(source)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resultToStatus(result))
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": result == controller.Accepted})
}

// validateHMAC verifies an X-Webhook-Signature-256 header of the form
// "sha256=<hex>" against payload, using a constant-time comparison to
// avoid a timing oracle on the signature check.
func validateHMAC(payload []byte, signature, secret string) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("missing or malformed signature header")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func resultToStatus(result controller.TriggerResult) int {
	if result == controller.Denied {
		return http.StatusConflict
	}
	return http.StatusAccepted
}
