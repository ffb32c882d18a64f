package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/triway/triway/internal/controller"
)

type fakeBus struct {
	calls   []string
	results []controller.TriggerResult
	next    int
}

func (b *fakeBus) TriggerSync(source string) controller.TriggerResult {
	b.calls = append(b.calls, source)
	if b.next < len(b.results) {
		r := b.results[b.next]
		b.next++
		return r
	}
	return controller.Accepted
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	bus := &fakeBus{}
	h := NewWebhookHandler("s3cret", bus, nil, nil)

	body := []byte(`{"event":"issue.updated","project_identifier":"ACME"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/tracker", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, bus.calls)
}

func TestWebhookAcceptsValidSignatureAndTriggers(t *testing.T) {
	bus := &fakeBus{}
	var markedLive bool
	h := NewWebhookHandler("s3cret", bus, func() { markedLive = true }, nil)

	body := []byte(`{"event":"issue.updated","project_identifier":"ACME"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/tracker", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature-256", sign("s3cret", body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.True(t, markedLive)
	require.Equal(t, []string{"webhook-tracker:ACME"}, bus.calls)
}

func TestWebhookDeniedMapsToConflict(t *testing.T) {
	bus := &fakeBus{results: []controller.TriggerResult{controller.Denied}}
	h := NewWebhookHandler("", bus, nil, nil)

	body := []byte(`{"event":"issue.updated"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/tracker", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhookSkipsVerificationWhenSecretEmpty(t *testing.T) {
	bus := &fakeBus{}
	h := NewWebhookHandler("", bus, nil, nil)

	body := []byte(`{"event":"issue.updated"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/tracker", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, bus.calls, 1)
}

func TestWorkflowHandlerTriggersWithSourceTag(t *testing.T) {
	bus := &fakeBus{}
	h := NewWorkflowHandler(bus, nil)

	req := httptest.NewRequest(http.MethodPost, "/workflow/trigger", strings.NewReader(`{"source":"ci-merge"}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"workflow:ci-merge"}, bus.calls)
}
