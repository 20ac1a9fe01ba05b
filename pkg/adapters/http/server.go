package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/n8nbridge"
	"github.com/aretw0/n8nbridge/pkg/domain"
	"github.com/aretw0/n8nbridge/pkg/ports"
)

// MaxActionBody caps the size of a POST /actions body.
const MaxActionBody = 64 << 10

//go:embed openapi.yaml
var rawSpec []byte

// Relay defines the interface for the action relay.
type Relay interface {
	ports.ActionRelay
}

// Server holds the handlers of the HTTP API.
type Server struct {
	Relay   Relay
	Metrics http.Handler
	Logger  *slog.Logger

	apiVersion string
}

// Option configures the handler.
type Option func(*Server)

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = l
	}
}

// NewHandler creates a new HTTP handler for the relay.
func NewHandler(relay Relay, opts ...Option) http.Handler {
	server := &Server{
		Relay:      relay,
		Logger:     slog.Default(),
		apiVersion: "unknown",
	}
	for _, opt := range opts {
		opt(server)
	}

	if doc, err := LoadSpec(context.Background()); err == nil {
		server.apiVersion = doc.Info.Version
	} else {
		server.Logger.Error("Failed to load OpenAPI spec", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/actions", server.ExecuteAction)
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if server.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", server.Metrics)
	}
	return r
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExecuteAction handles the POST /actions request.
func (s *Server) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	var body domain.ActionRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxActionBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("ExecuteAction: Invalid request body", "error", err)
		return
	}

	res := s.Relay.Execute(r.Context(), body)

	writeJSON(w, statusFor(res), res, s.Logger)
}

// statusFor maps a relay result onto this API's status codes.
func statusFor(res domain.Result) int {
	switch domain.KindOf(res) {
	case "":
		return http.StatusOK
	case domain.FailureInvalidRequest:
		return http.StatusBadRequest
	case domain.FailureConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.Logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "n8nbridge-http",
		"version":     strings.TrimSpace(n8nbridge.Version),
		"api_version": s.apiVersion,
	}, s.Logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
