package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/n8nbridge/internal/config"
	"github.com/aretw0/n8nbridge/pkg/adapters/mcp"
	"github.com/aretw0/n8nbridge/pkg/adapters/ws"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Publishes the "ejecutar_accion_n8n" tool as an MCP Server.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.
- websocket: Dials a remote MCP hub (e.g. Xiaozhi) and serves calls over that socket.
  Requires a token (--token or XIAOZHI_MCP_TOKEN).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.cfg.ValidateTransport(); err != nil {
			return err
		}

		srv := mcp.NewServer(a.relay,
			mcp.WithName(a.cfg.MCP.ServerName),
			mcp.WithLogger(a.logger),
		)

		ctx, stop := signalContext(cmd)
		defer stop()

		switch a.cfg.MCP.Transport {
		case config.TransportStdio:
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			a.logger.Info("Starting MCP Server (Stdio)", "tool", mcp.ToolName)
			if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case config.TransportSSE:
			a.logger.Info("Starting MCP Server (SSE)", "port", a.cfg.MCP.Port)
			if err := srv.ServeSSE(ctx, a.cfg.MCP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case config.TransportWebsocket:
			a.logger.Info("Starting MCP Server (websocket)", "endpoint", a.cfg.MCP.Endpoint)
			transport := ws.NewTransport(srv.MCPServer(), a.cfg.MCP.Endpoint, a.cfg.MCP.Token,
				ws.WithLogger(a.logger),
			)
			if err := transport.Serve(ctx); err != nil {
				return err
			}
		}

		a.logger.Info("MCP Server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", config.TransportStdio, "Transport protocol to use: 'stdio', 'sse' or 'websocket'")
	mcpCmd.Flags().Int("port", config.DefaultPort, "Port to listen on (only for SSE)")
	mcpCmd.Flags().String("endpoint", config.DefaultMCPEndpoint, "Remote MCP endpoint (only for websocket)")
	mcpCmd.Flags().String("token", "", "Remote MCP token or full endpoint URL with ?token= (only for websocket)")
	mcpCmd.Flags().String("name", config.DefaultServerName, "Server name announced to MCP clients")
}
