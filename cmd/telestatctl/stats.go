package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/stats"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the current telemetry overview",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient(addr)

			overview, err := c.overview()
			if err != nil {
				return err
			}

			printOverviewHeader(overview)
			printCodesTable(overview.Codes)
			printPeriodTable("times (microseconds)", overview.Times)
			printPeriodTable("connections", overview.Connections)
			printPeriodTable("memory (bytes)", overview.Memory)

			return nil
		},
	}
}

func printOverviewHeader(o overviewResponse) {
	fmt.Fprintf(os.Stdout, "started:  %s\n", o.StartedAt)
	fmt.Fprintf(os.Stdout, "last sec: %s\n", o.LastSecond)
	fmt.Fprintf(os.Stdout, "uptime:   %s\n", (time.Duration(o.Uptime) * time.Second).String())
	fmt.Fprintf(os.Stdout, "active:   %d\n", o.Active)
	fmt.Fprintf(os.Stdout, "requests: %s\n\n", humanize.Comma(int64(o.Requests))) //nolint:gosec // display only
}

func printCodesTable(codes map[string]uint64) {
	if len(codes) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"status", "count"})

	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		tbl.AppendRow(table.Row{colorizeStatus(k), humanize.Comma(int64(codes[k]))}) //nolint:gosec // display only
	}

	tbl.Render()
	fmt.Fprintln(os.Stdout)
}

// colorizeStatus colors a "<code> <reason>" status key the way an operator
// scanning a terminal expects: green 2xx, yellow 4xx, red 5xx.
func colorizeStatus(statusKey string) string {
	code := statusKey

	if idx := strings.IndexByte(statusKey, ' '); idx >= 0 {
		code = statusKey[:idx]
	}

	switch {
	case strings.HasPrefix(code, "2"):
		return color.GreenString(statusKey)
	case strings.HasPrefix(code, "4"):
		return color.YellowString(statusKey)
	case strings.HasPrefix(code, "5"):
		return color.RedString(statusKey)
	default:
		return statusKey
	}
}

func printPeriodTable(title string, periods map[string]stats.PeriodAggregate) {
	if len(periods) == 0 {
		return
	}

	fmt.Fprintln(os.Stdout, title+":")

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"period", "average", "maximum", "minimum", "count"})

	for _, name := range orderedPeriodNames(periods) {
		p := periods[name]
		tbl.AppendRow(table.Row{
			name,
			strconv.FormatFloat(p.Average, 'f', 2, 64),
			p.Maximum,
			p.Minimum,
			p.Count,
		})
	}

	tbl.Render()
	fmt.Fprintln(os.Stdout)
}

// orderedPeriodNames puts "all" last and otherwise sorts alphabetically;
// decoding the overview into a Go map loses the server's
// ascending-by-seconds key order, so this is a display-only convenience,
// not a reconstruction of that order.
func orderedPeriodNames(periods map[string]stats.PeriodAggregate) []string {
	names := make([]string, 0, len(periods))
	for name := range periods {
		if name != "all" {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	if _, ok := periods["all"]; ok {
		names = append(names, "all")
	}

	return names
}
