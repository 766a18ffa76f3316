package main

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/stats"
)

func chartCmd() *cobra.Command {
	var buffer string
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render a history buffer as an HTML line chart for local inspection",
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient(addr)

			hist, err := c.history(buffer, limit)
			if err != nil {
				return err
			}

			series := selectHistorySeries(hist, buffer)
			if len(series) == 0 {
				return fmt.Errorf("no entries for buffer %q", buffer)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()

			if renderErr := renderLineChart(buffer, series).Render(f); renderErr != nil {
				return fmt.Errorf("render chart: %w", renderErr)
			}

			fmt.Fprintf(os.Stdout, "wrote %s\n", output)

			return nil
		},
	}

	cmd.Flags().StringVar(&buffer, "buffer", "times", "times, connections, or memory")
	cmd.Flags().IntVar(&limit, "limit", 300, "newest N entries to chart")
	cmd.Flags().StringVarP(&output, "output", "o", "telestat-chart.html", "output HTML file path")

	return cmd
}

func selectHistorySeries(hist historyResponse, buffer string) []stats.PeriodAggregate {
	switch buffer {
	case "connections":
		return hist.Connections
	case "memory":
		return hist.Memory
	default:
		return hist.Times
	}
}

// renderLineChart builds an average-per-second line over the selected
// buffer's newest entries, oldest-first so the line reads left-to-right.
func renderLineChart(buffer string, newestFirst []stats.PeriodAggregate) *charts.Line {
	n := len(newestFirst)

	xLabels := make([]string, n)
	lineData := make([]opts.LineData, n)

	for i := range n {
		entry := newestFirst[n-1-i]
		xLabels[i] = entry.StartedAt.Format("15:04:05")
		lineData[i] = opts.LineData{Value: entry.Average}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "telestat " + buffer,
			Subtitle: "average per second, newest " + fmt.Sprintf("%d", n) + " entries",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "second"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "average"}),
	)
	line.SetXAxis(xLabels)
	line.AddSeries("average", lineData)

	return line
}
