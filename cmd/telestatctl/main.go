// Package main is the entry point for telestatctl, a CLI for inspecting a
// running telestatd instance's telemetry endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/version"
)

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:           "telestatctl",
		Short:         "telestatctl inspects a running telestatd instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "telestatd base URL")

	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(chartCmd())
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
			fmt.Fprintf(os.Stdout, "telestatctl %s\n", version.String())
		},
	}
}
