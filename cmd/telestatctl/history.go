package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/stats"
)

func historyCmd() *cobra.Command {
	var buffer string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the newest entries of a telemetry ring buffer",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient(addr)

			hist, err := c.history(buffer, limit)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "last completed second: %s\n\n", hist.LastSecond)

			renderHistorySeries(os.Stdout, "times", hist.Times)
			renderHistorySeries(os.Stdout, "connections", hist.Connections)
			renderHistorySeries(os.Stdout, "memory", hist.Memory)

			return nil
		},
	}

	cmd.Flags().StringVar(&buffer, "buffer", "", "times, connections, or memory (default: all three)")
	cmd.Flags().IntVar(&limit, "limit", 20, "newest N entries to print")

	return cmd
}

func renderHistorySeries(w io.Writer, name string, entries []stats.PeriodAggregate) {
	if len(entries) == 0 {
		return
	}

	fmt.Fprintln(w, name+":")

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"started_at", "average", "maximum", "minimum", "count"})

	for _, e := range entries {
		tbl.AppendRow(table.Row{
			e.StartedAt.Format("2006-01-02T15:04:05"),
			strconv.FormatFloat(e.Average, 'f', 2, 64),
			e.Maximum,
			e.Minimum,
			e.Count,
		})
	}

	tbl.Render()
	fmt.Fprintln(w)
}
