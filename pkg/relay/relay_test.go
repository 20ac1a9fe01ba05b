package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/n8nbridge/internal/logging"
	"github.com/aretw0/n8nbridge/internal/testutils"
	"github.com/aretw0/n8nbridge/pkg/domain"
	"github.com/aretw0/n8nbridge/pkg/observability"
)

// mockClient counts calls and answers with a canned response or error.
type mockClient struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	body     string
	err      error
}

func (c *mockClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: c.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

func (c *mockClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []domain.Result
}

func (o *recordingObserver) ObserveResult(_ domain.ActionRequest, res domain.Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

type panickingObserver struct{}

func (panickingObserver) ObserveResult(domain.ActionRequest, domain.Result, time.Duration) {
	panic("observer failure")
}

func newTestRelay(url string, opts ...Option) *Relay {
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	return New(Config{EndpointURL: url}, opts...)
}

func TestExecute_SuccessJSON(t *testing.T) {
	webhook := testutils.NewWebhook(t, http.StatusOK, `{"ok": true}`)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := newTestRelay(webhook.URL, WithClock(func() time.Time { return fixed }))

	res := r.Execute(context.Background(), domain.NewActionRequest("start", "campaign_123", ""))

	success, ok := res.(domain.Success)
	require.True(t, ok, "expected Success, got %#v", res)
	assert.Equal(t, 200, success.StatusCode)
	assert.Equal(t, map[string]any{"ok": true}, success.Body)

	require.Len(t, webhook.Payloads(), 1)
	assert.Equal(t, domain.Payload{
		Command:   "start",
		Target:    "campaign_123",
		Value:     "",
		Origin:    DefaultOrigin,
		Timestamp: "2026-01-02T03:04:05Z",
	}, webhook.Payloads()[0])

	headers := webhook.Headers()[0]
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Empty(t, headers.Get("Authorization"))
}

func TestExecute_SuccessNonJSONAndEmpty(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{name: "plain text", body: "Workflow was started", want: "Workflow was started"},
		{name: "empty body", body: "", want: domain.ConfirmationMessage},
		{name: "whitespace body", body: "  \n", want: domain.ConfirmationMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{status: http.StatusOK, body: tt.body}
			r := newTestRelay("https://n8n.example.com/webhook/x", WithHTTPClient(client))

			res := r.Execute(context.Background(), domain.NewActionRequest("ping"))

			success, ok := res.(domain.Success)
			require.True(t, ok)
			assert.Equal(t, tt.want, success.Body)
			assert.Equal(t, 1, client.calls())
		})
	}
}

func TestExecute_HTTPStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	res := newTestRelay(srv.URL).Execute(context.Background(), domain.NewActionRequest("start"))

	failure, ok := res.(domain.Failure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureHTTPStatus, failure.Kind)
	assert.Equal(t, 500, failure.StatusCode)
	assert.Contains(t, failure.Message, "500")
	assert.Contains(t, failure.Message, "internal error")
}

func TestExecute_HTTPStatusBodyIsTruncated(t *testing.T) {
	client := &mockClient{status: http.StatusBadGateway, body: strings.Repeat("x", 2000)}
	res := newTestRelay("http://n8n.local/hook", WithHTTPClient(client)).
		Execute(context.Background(), domain.NewActionRequest("start"))

	failure := res.(domain.Failure)
	assert.Equal(t, domain.FailureHTTPStatus, failure.Kind)
	assert.Less(t, len(failure.Message), 600)
	assert.True(t, strings.HasSuffix(failure.Message, "..."))
}

func TestExecute_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := newTestRelay(url).Execute(context.Background(), domain.NewActionRequest("start"))

	failure, ok := res.(domain.Failure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureConnection, failure.Kind)
	assert.NotEmpty(t, failure.Message)
}

func TestExecute_ClientError(t *testing.T) {
	client := &mockClient{err: errors.New("tls: handshake failure")}
	res := newTestRelay("https://n8n.example.com/hook", WithHTTPClient(client)).
		Execute(context.Background(), domain.NewActionRequest("start"))

	failure := res.(domain.Failure)
	assert.Equal(t, domain.FailureConnection, failure.Kind)
	assert.Contains(t, failure.Message, "tls: handshake failure")
}

func TestExecute_MissingEndpointMakesNoCall(t *testing.T) {
	client := &mockClient{status: http.StatusOK}
	r := New(Config{}, WithHTTPClient(client), WithLogger(logging.NewNop()))

	res := r.Execute(context.Background(), domain.NewActionRequest("start"))

	failure, ok := res.(domain.Failure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureConfiguration, failure.Kind)
	assert.Equal(t, 0, client.calls())
}

func TestExecute_InvalidEndpointMakesNoCall(t *testing.T) {
	for _, endpoint := range []string{"ftp://n8n.local/hook", "not a url", "/relative/path", "http://"} {
		t.Run(endpoint, func(t *testing.T) {
			client := &mockClient{status: http.StatusOK}
			res := newTestRelay(endpoint, WithHTTPClient(client)).
				Execute(context.Background(), domain.NewActionRequest("start"))

			assert.Equal(t, domain.FailureConfiguration, domain.KindOf(res))
			assert.Equal(t, 0, client.calls())
		})
	}
}

func TestExecute_EmptyActionMakesNoCall(t *testing.T) {
	client := &mockClient{status: http.StatusOK}
	res := newTestRelay("https://n8n.example.com/hook", WithHTTPClient(client)).
		Execute(context.Background(), domain.NewActionRequest(""))

	assert.Equal(t, domain.FailureInvalidRequest, domain.KindOf(res))
	assert.Equal(t, 0, client.calls())
}

func TestExecute_InvalidUTF8ActionWithMetrics(t *testing.T) {
	client := &mockClient{status: http.StatusOK, body: `{"ok": true}`}
	r := newTestRelay("https://n8n.example.com/hook",
		WithHTTPClient(client),
		WithObserver(observability.NewMetrics()),
	)

	var res domain.Result
	require.NotPanics(t, func() {
		res = r.Execute(context.Background(), domain.NewActionRequest("encender\xffluces"))
	})
	assert.True(t, res.OK())
	assert.Equal(t, 1, client.calls())
}

func TestExecute_ObserverPanicKeepsResult(t *testing.T) {
	client := &mockClient{status: http.StatusBadGateway, body: "down"}
	r := newTestRelay("https://n8n.example.com/hook",
		WithHTTPClient(client),
		WithObserver(panickingObserver{}),
	)

	var res domain.Result
	require.NotPanics(t, func() {
		res = r.Execute(context.Background(), domain.NewActionRequest("start"))
	})
	assert.Equal(t, domain.FailureHTTPStatus, domain.KindOf(res))
}

func TestExecute_BearerToken(t *testing.T) {
	client := &mockClient{status: http.StatusOK}
	r := New(Config{EndpointURL: "https://n8n.example.com/hook", AuthToken: "s3cret"},
		WithHTTPClient(client), WithLogger(logging.NewNop()))

	r.Execute(context.Background(), domain.NewActionRequest("start"))

	require.Equal(t, 1, client.calls())
	assert.Equal(t, "Bearer s3cret", client.requests[0].Header.Get("Authorization"))
	assert.True(t, strings.HasPrefix(client.requests[0].Header.Get("User-Agent"), "n8nbridge/"))
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := New(Config{EndpointURL: srv.URL, Timeout: 50 * time.Millisecond}, WithLogger(logging.NewNop()))
	res := r.Execute(context.Background(), domain.NewActionRequest("slow"))

	failure, ok := res.(domain.Failure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureConnection, failure.Kind)
	assert.Contains(t, failure.Message, "did not answer")
}

func TestExecute_CallerCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res := newTestRelay(srv.URL).Execute(ctx, domain.NewActionRequest("start"))
	assert.Equal(t, domain.FailureConnection, domain.KindOf(res))
}

func TestExecute_NoDeduplication(t *testing.T) {
	webhook := testutils.NewWebhook(t, http.StatusOK, "")

	r := newTestRelay(webhook.URL)
	req := domain.NewActionRequest("start", "campaign_123")
	r.Execute(context.Background(), req)
	r.Execute(context.Background(), req)

	assert.Len(t, webhook.Payloads(), 2)
}

func TestExecute_Concurrent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	r := newTestRelay(srv.URL, WithObserver(obs))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Execute(context.Background(), domain.NewActionRequest("start"))
			assert.True(t, res.OK())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), hits.Load())
	assert.Len(t, obs.results, n)
}

func TestExecute_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	client := &mockClient{status: http.StatusServiceUnavailable, body: "down"}
	r := newTestRelay("https://n8n.example.com/hook", WithHTTPClient(client), WithTracer(tp.Tracer("test")))
	r.Execute(context.Background(), domain.NewActionRequest("start"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "relay.execute", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "start", attrs["relay.action"])
	assert.Equal(t, "http_status", attrs["relay.failure_kind"])
	assert.Equal(t, "503", attrs["http.response.status_code"])
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{EndpointURL: "  https://n8n.example.com/hook  "})
	cfg := r.Config()
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultOrigin, cfg.Origin)
	assert.Equal(t, "https://n8n.example.com/hook", cfg.EndpointURL)
}
