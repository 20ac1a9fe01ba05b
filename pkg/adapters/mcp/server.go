package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/n8nbridge"
	"github.com/aretw0/n8nbridge/pkg/domain"
	"github.com/aretw0/n8nbridge/pkg/ports"
)

// ToolName is the name under which the relay is published to MCP clients.
const ToolName = "ejecutar_accion_n8n"

// Relay defines the interface required by the MCP server to relay actions.
type Relay interface {
	ports.ActionRelay
}

// Server wraps a Relay and exposes it as an MCP Server with a single tool.
type Server struct {
	relay     Relay
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	name   string
	logger *slog.Logger
}

// WithName sets the server name announced during initialization.
func WithName(name string) Option {
	return func(o *serverOptions) {
		o.name = name
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(relay Relay, opts ...Option) *Server {
	o := serverOptions{name: "n8n-mcp-bridge", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		relay:  relay,
		logger: o.logger,
		mcpServer: server.NewMCPServer(o.name, strings.TrimSpace(n8nbridge.Version),
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server (used by the websocket transport).
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC on Stdin/Stdout until ctx is done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down SSE server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Ejecuta una acción o automatización en el sistema n8n. Puede controlar luces, tareas, datos, etc."),
		mcp.WithString("accion", mcp.Required(), mcp.Description(`Nombre de la acción: "encender_luces", "crear_tarea", etc.`)),
		mcp.WithString("objetivo", mcp.Description(`Objetivo: "salon", "comprar leche", etc.`)),
		mcp.WithString("valor", mcp.Description(`Valor opcional: "22", "alta", etc.`)),
	)
	s.mcpServer.AddTool(tool, s.handleExecute)
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req domain.ActionRequest
	// Weak decoding lets clients send numbers or booleans for "valor".
	if err := mapstructure.WeakDecode(request.GetArguments(), &req); err != nil {
		s.logger.Warn("MCP: invalid tool arguments", "tool", request.Params.Name, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error: invalid arguments: %v", err)), nil
	}

	s.logger.Info("MCP: tool call", "tool", request.Params.Name, "accion", req.Action, "objetivo", req.Target)
	res := s.relay.Execute(ctx, req)
	return toToolResult(req, res), nil
}

// toToolResult renders a relay result for an MCP client: a human readable text block
// plus the result itself as structured content.
func toToolResult(req domain.ActionRequest, res domain.Result) *mcp.CallToolResult {
	var text string
	switch v := res.(type) {
	case domain.Success:
		text = fmt.Sprintf("Acción %q completada. Respuesta: %s", req.Action, v.String())
	case domain.Failure:
		text = "Error: " + v.Message
	}

	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(text)},
		StructuredContent: structured(res),
		IsError:           !res.OK(),
	}
}

// structured turns a result into a plain JSON object so every transport encodes it the
// same way.
func structured(res domain.Result) map[string]any {
	data, err := json.Marshal(res)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
