package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytel/telestat/internal/stats"
)

// TestQueryOverviewPeriodFold covers concrete scenario 4, exercised through
// the public Query surface rather than the worker's internals.
func TestQueryOverviewPeriodFold(t *testing.T) {
	t.Parallel()

	cfg := stats.Config{
		Enabled:          true,
		TimingBufferSize: 100,
		Periods: []stats.NamedPeriod{
			{Name: "minute", Seconds: 60},
			{Name: "second", Seconds: 1},
		},
	}
	state := stats.NewState(cfg)

	// Directly populate the buffer and totals the way the aggregator would,
	// without depending on the worker's internals.
	now := time.Date(2026, 1, 1, 0, 1, 30, 0, time.UTC)
	seedBuffer(t, state, now, 90, 1000)

	q := stats.NewQuery(state)
	overview := q.Overview(now)

	byName := make(map[string]stats.PeriodAggregate, len(overview.Times))
	for _, na := range overview.Times {
		byName[na.Name] = na.Aggregate
	}

	require.Contains(t, byName, "second")
	require.Contains(t, byName, "minute")
	require.Contains(t, byName, "all")

	assert.Equal(t, uint64(1), byName["second"].Count)
	assert.Equal(t, uint64(60), byName["minute"].Count)
	assert.Equal(t, uint64(90), byName["all"].Count)
	assert.InDelta(t, 1000, byName["all"].Average, 0.001)

	// Ascending order: second (1s) before minute (60s), "all" trailing.
	require.Len(t, overview.Times, 3)
	assert.Equal(t, "second", overview.Times[0].Name)
	assert.Equal(t, "minute", overview.Times[1].Name)
	assert.Equal(t, "all", overview.Times[2].Name)
}

// TestQueryHistoryLimit covers concrete scenario 5.
func TestQueryHistoryLimit(t *testing.T) {
	t.Parallel()

	state := stats.NewState(stats.Config{Enabled: true, TimingBufferSize: 200})
	now := time.Date(2026, 1, 1, 0, 1, 40, 0, time.UTC)
	seedBuffer(t, state, now, 100, 500)

	q := stats.NewQuery(state)
	result := q.History(stats.HistoryParams{Buffer: stats.HistoryBufferTimes, Limit: 10})

	require.Len(t, result.Times, 10)
	assert.Equal(t, result.LastCompletedSecond, result.Times[0].StartedAt)

	for i := 1; i < len(result.Times); i++ {
		diff := result.Times[i-1].StartedAt.Sub(result.Times[i].StartedAt)
		assert.Equal(t, time.Second, diff)
	}
}

// TestQueryHistoryFromCutoff verifies the from-timestamp stop condition.
func TestQueryHistoryFromCutoff(t *testing.T) {
	t.Parallel()

	state := stats.NewState(stats.Config{Enabled: true, TimingBufferSize: 200})
	now := time.Date(2026, 1, 1, 0, 1, 40, 0, time.UTC)
	lastSecond := seedBuffer(t, state, now, 100, 500)

	cutoff := lastSecond.Add(-5 * time.Second)

	q := stats.NewQuery(state)
	result := q.History(stats.HistoryParams{Buffer: stats.HistoryBufferTimes, From: cutoff, Limit: 1000})

	for _, e := range result.Times {
		assert.False(t, e.StartedAt.Before(cutoff))
	}
}

// seedBuffer pushes n one-second-apart entries of the given average value
// into state's timing buffer and totals, ending at (roughly) now, and
// returns the timestamp of the newest entry.
func seedBuffer(t *testing.T, state *stats.State, now time.Time, n int, value uint64) time.Time {
	t.Helper()

	last := now.Truncate(time.Second)
	series := stats.BuildSecondSeriesForTest(last, n, value)
	stats.SeedResponsesForTest(state, series, value, n)
	stats.SetLastCompletedSecondForTest(state, last)

	return last
}
