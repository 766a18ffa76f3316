// Package main is the entry point for telestatd, the telemetry-core host
// service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telestatd",
		Short: "telestatd hosts the request telemetry core over HTTP",
		Long: `telestatd serves /api/stats, /api/stats/history, and /api/stats/feed
backed by the in-memory request telemetry core, alongside /api/ping and
/api/version.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "telestatd %s\n", version.String())
		},
	}
}
