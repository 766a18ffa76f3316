package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether telestatd is reachable",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient(addr)

			latency, err := c.ping()
			if err != nil {
				color.New(color.FgRed).Fprintln(os.Stdout, "DOWN:", err)

				return err
			}

			color.New(color.FgGreen).Fprintf(os.Stdout, "OK %s (%s)\n", addr, latency)

			return nil
		},
	}
}
