package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "n8nbridge",
	Short: "n8nbridge exposes an n8n webhook as an MCP tool",
	Long: `n8nbridge relays tool calls from AI agents to an n8n webhook.

Each call to the "ejecutar_accion_n8n" tool becomes one JSON POST to the configured
webhook; the webhook's answer (or the reason it failed) is returned to the agent.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "n8nbridge.yaml", "Path to the YAML or JSON config file")
	rootCmd.PersistentFlags().String("webhook-url", "", "n8n webhook URL (overrides N8N_WEBHOOK_URL)")
	rootCmd.PersistentFlags().String("webhook-token", "", "Bearer token sent to the webhook")
	rootCmd.PersistentFlags().Int("timeout-ms", 0, "Webhook timeout in milliseconds")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// signalContext derives a context from the command's that is canceled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
