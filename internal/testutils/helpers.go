package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aretw0/n8nbridge/pkg/domain"
)

// Webhook is a stand-in for an n8n webhook that records every payload it receives.
type Webhook struct {
	*httptest.Server

	mu       sync.Mutex
	payloads []domain.Payload
	headers  []http.Header
}

// NewWebhook starts a webhook answering with status and body.
// It is closed automatically when the test ends.
func NewWebhook(t *testing.T, status int, body string) *Webhook {
	t.Helper()

	wh := &Webhook{}
	wh.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p domain.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("webhook received an undecodable payload: %v", err)
		}
		wh.mu.Lock()
		wh.payloads = append(wh.payloads, p)
		wh.headers = append(wh.headers, r.Header.Clone())
		wh.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(wh.Close)
	return wh
}

// Payloads returns a copy of the payloads received so far.
func (w *Webhook) Payloads() []domain.Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.Payload(nil), w.payloads...)
}

// Headers returns a copy of the request headers received so far.
func (w *Webhook) Headers() []http.Header {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]http.Header(nil), w.headers...)
}
