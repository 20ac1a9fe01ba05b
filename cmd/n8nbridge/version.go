package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/n8nbridge"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of n8nbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("n8nbridge version %s\n", strings.TrimSpace(n8nbridge.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
