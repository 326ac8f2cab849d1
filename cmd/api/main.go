package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd sem subcomando sobe o servidor
var rootCmd = &cobra.Command{
	Use:   "chat-gateway",
	Short: "Gateway between the public chat widget and the automation webhook",
	Long: `chat-gateway receives chat turns from the public widget, applies per-client
rate limiting and input sanitization, and relays accepted messages to the
automation webhook.

Examples:
  # Run the HTTP server (default)
  chat-gateway serve

  # Print the effective configuration
  chat-gateway config`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
