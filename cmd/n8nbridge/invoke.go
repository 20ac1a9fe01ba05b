package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/n8nbridge/internal/presentation/tui"
	"github.com/aretw0/n8nbridge/pkg/domain"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <accion> [objetivo] [valor]",
	Short: "Relay a single action and print the result",
	Long: `Runs the relay once, outside of any MCP client. Useful to check a webhook.

The result is rendered for humans on a terminal and printed as JSON otherwise
(or always with --json). The exit status is 1 when the relay reports a failure.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signalContext(cmd)
		defer stop()

		req := domain.NewActionRequest(args[0], args[1:]...)
		res := a.relay.Execute(ctx, req)

		jsonMode, _ := cmd.Flags().GetBool("json")
		if jsonMode || !tui.IsTerminal(os.Stdout) {
			err = tui.WriteJSON(os.Stdout, res)
		} else {
			err = tui.WriteResult(os.Stdout, req, res)
		}
		if err != nil {
			return err
		}
		if !res.OK() {
			a.close()
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(invokeCmd)
	invokeCmd.Flags().Bool("json", false, "Always print the result as JSON")
}
