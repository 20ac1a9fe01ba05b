package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/n8nbridge"
	"github.com/aretw0/n8nbridge/pkg/domain"
	"github.com/aretw0/n8nbridge/pkg/ports"
)

const (
	// DefaultTimeout bounds a single webhook call when Config.Timeout is zero.
	DefaultTimeout = 15 * time.Second
	// DefaultOrigin is sent as "origen" when Config.Origin is empty.
	DefaultOrigin = "xiaozhi_ai_mcp"
	// MaxErrorBody is how many characters of a non-2xx body end up in Failure.Message.
	MaxErrorBody = 500

	maxResponseBytes = 4 << 20
	tracerName       = "github.com/aretw0/n8nbridge/pkg/relay"
)

// HTTPClient abstracts outbound HTTP execution.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is notified once per Execute call with the final outcome.
type Observer = ports.Observer

var _ ports.ActionRelay = (*Relay)(nil)

// Config is the process-wide relay configuration. It is resolved once at startup.
type Config struct {
	EndpointURL string
	AuthToken   string
	Timeout     time.Duration
	Origin      string
}

// Relay posts actions to the configured webhook.
type Relay struct {
	config   Config
	client   HTTPClient
	tracer   trace.Tracer
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c HTTPClient) Option {
	return func(r *Relay) {
		r.client = c
	}
}

// WithTracer sets the tracer used for the per-invocation span.
func WithTracer(t trace.Tracer) Option {
	return func(r *Relay) {
		r.tracer = t
	}
}

// WithObserver registers an outcome observer (metrics).
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		r.observer = o
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

// WithClock overrides the clock used for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

// New creates a Relay. Zero values in cfg fall back to the package defaults.
func New(cfg Config, opts ...Option) *Relay {
	cfg.EndpointURL = strings.TrimSpace(cfg.EndpointURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}

	r := &Relay{
		config: cfg,
		client: http.DefaultClient,
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the resolved configuration.
func (r *Relay) Config() Config {
	return r.config
}

// Execute relays one action. It always returns a domain.Success or a domain.Failure.
func (r *Relay) Execute(ctx context.Context, req domain.ActionRequest) (res domain.Result) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "relay.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("relay.action", req.Action),
			attribute.String("relay.target", req.Target),
		),
	)
	defer func() {
		r.finish(span, req, res, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return domain.Failure{Kind: domain.FailureInvalidRequest, Message: err.Error()}
	}

	endpoint, err := r.endpoint()
	if err != nil {
		return domain.Failure{Kind: domain.FailureConfiguration, Message: err.Error()}
	}

	body, err := json.Marshal(domain.NewPayload(req, r.config.Origin, r.now()))
	if err != nil {
		return domain.Failure{Kind: domain.FailureInvalidRequest, Message: fmt.Sprintf("marshal payload: %v", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Failure{Kind: domain.FailureConfiguration, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "n8nbridge/"+strings.TrimSpace(n8nbridge.Version))
	if r.config.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.config.AuthToken)
	}

	r.logger.Debug("relay: posting action", "action", req.Action, "endpoint", endpoint)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return domain.Failure{Kind: domain.FailureConnection, Message: describeTransportError(err, r.config.Timeout)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Failure{Kind: domain.FailureConnection, Message: fmt.Sprintf("read response body: %v", err)}
	}

	return classify(resp.StatusCode, respBody)
}

func (r *Relay) endpoint() (string, error) {
	if r.config.EndpointURL == "" {
		return "", domain.ErrMissingEndpoint
	}
	u, err := url.Parse(r.config.EndpointURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) URL", domain.ErrInvalidEndpoint, r.config.EndpointURL)
	}
	return u.String(), nil
}

func (r *Relay) finish(span trace.Span, req domain.ActionRequest, res domain.Result, elapsed time.Duration) {
	defer span.End()

	switch v := res.(type) {
	case domain.Success:
		span.SetAttributes(attribute.Int("http.response.status_code", v.StatusCode))
		span.SetStatus(codes.Ok, "")
		r.logger.Info("relay: action delivered", "action", req.Action, "status", v.StatusCode, "elapsed", elapsed)
	case domain.Failure:
		span.SetAttributes(attribute.String("relay.failure_kind", string(v.Kind)))
		if v.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", v.StatusCode))
		}
		span.SetStatus(codes.Error, v.Message)
		r.logger.Warn("relay: action failed", "action", req.Action, "kind", v.Kind, "error", v.Message, "elapsed", elapsed)
	}

	if r.observer != nil {
		r.observe(req, res, elapsed)
	}
}

// observe shields the caller from a failing observer; the result is already decided.
func (r *Relay) observe(req domain.ActionRequest, res domain.Result, elapsed time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("relay: observer panicked", "action", req.Action, "panic", p)
		}
	}()
	r.observer.ObserveResult(req, res, elapsed)
}

func classify(status int, body []byte) domain.Result {
	text := strings.TrimSpace(string(body))

	if status < 200 || status >= 300 {
		return domain.Failure{
			Kind:       domain.FailureHTTPStatus,
			StatusCode: status,
			Message:    fmt.Sprintf("webhook returned status %d: %s", status, truncate(text, MaxErrorBody)),
		}
	}

	if text == "" {
		return domain.Success{StatusCode: status, Body: domain.ConfirmationMessage}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return domain.Success{StatusCode: status, Body: decoded, Raw: text}
	}
	return domain.Success{StatusCode: status, Body: text, Raw: text}
}

func describeTransportError(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("webhook did not answer within %s: %v", timeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("request canceled: %v", err)
	default:
		return fmt.Sprintf("could not reach webhook: %v", err)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
