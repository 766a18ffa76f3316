package stats

import "time"

// SeedResponsesForTest pushes entries (oldest-first) directly into the
// responses buffer and folds value into totals.Times n times, bypassing
// the aggregator. It exists only to let the query-surface tests build a
// buffer's contents without reimplementing the worker's advance loop.
func SeedResponsesForTest(s *State, oldestFirst []PeriodAggregate, totalsValue uint64, totalsCount int) {
	s.withBuffersWrite(func(b *Buffers) {
		for _, e := range oldestFirst {
			b.Responses.PushFront(e)
		}
	})

	s.WithTotals(func(totals *Totals) {
		for range totalsCount {
			totals.Times.Merge(Initialize(totalsValue))
		}
	})
}

// BuildSecondSeriesForTest returns n PeriodAggregate entries, oldest-first,
// one second apart, ending at last, each seeded from Initialize(value).
func BuildSecondSeriesForTest(last time.Time, n int, value uint64) []PeriodAggregate {
	out := make([]PeriodAggregate, n)
	for i := range n {
		entry := Initialize(value)
		entry.StartedAt = last.Add(-time.Duration(n-1-i) * time.Second)
		out[i] = entry
	}

	return out
}

// SetLastCompletedSecondForTest installs last_completed_second directly.
func SetLastCompletedSecondForTest(s *State, t time.Time) {
	s.setLastCompletedSecond(t)
}
