package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytel/telestat/internal/stats"
)

func TestSelectHistorySeries(t *testing.T) {
	t.Parallel()

	hist := historyResponse{
		Times:       []stats.PeriodAggregate{{Count: 1}},
		Connections: []stats.PeriodAggregate{{Count: 2}},
		Memory:      []stats.PeriodAggregate{{Count: 3}},
	}

	assert.Equal(t, hist.Connections, selectHistorySeries(hist, "connections"))
	assert.Equal(t, hist.Memory, selectHistorySeries(hist, "memory"))
	assert.Equal(t, hist.Times, selectHistorySeries(hist, "times"))
	assert.Equal(t, hist.Times, selectHistorySeries(hist, ""))
}

func TestRenderLineChartOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 7, 31, 0, 0, 10, 0, time.UTC)
	newestFirst := []stats.PeriodAggregate{
		{StartedAt: now, Average: 30},
		{StartedAt: now.Add(-1 * time.Second), Average: 20},
		{StartedAt: now.Add(-2 * time.Second), Average: 10},
	}

	line := renderLineChart("times", newestFirst)

	var buf bytes.Buffer
	require.NoError(t, line.Render(&buf))

	html := buf.String()
	assert.Contains(t, html, "telestat times")

	oldestLabel := now.Add(-2 * time.Second).Format("15:04:05")
	newestLabel := now.Format("15:04:05")

	oldestIdx := bytes.Index(buf.Bytes(), []byte(oldestLabel))
	newestIdx := bytes.Index(buf.Bytes(), []byte(newestLabel))
	require.NotEqual(t, -1, oldestIdx)
	require.NotEqual(t, -1, newestIdx)
	assert.Less(t, oldestIdx, newestIdx, "oldest label should render before newest (left-to-right)")
}
