package stats

import (
	"net/http"
	"strconv"
	"time"
)

// Sample is a single completed request's observations, produced by the
// capture hook (C4) and consumed exactly once by the aggregator worker (C5).
type Sample struct {
	Endpoint    Endpoint
	StartedAt   time.Time
	TimeTakenUs uint64
	StatusCode  int
	Connections uint64
	MemoryBytes uint64
}

// AllStatsForPeriod bundles the three PeriodAggregates for one completed
// second. It is emitted exactly once per non-idle second on the fan-out bus.
type AllStatsForPeriod struct {
	Times       PeriodAggregate `json:"times"`
	Connections PeriodAggregate `json:"connections"`
	Memory      PeriodAggregate `json:"memory"`
}

// Totals is the all-time aggregate since process start. Only the aggregator
// worker mutates it; the query surface reads it under a short-held lock.
type Totals struct {
	Codes       map[string]uint64
	Times       PeriodAggregate
	Endpoints   map[Endpoint]PeriodAggregate
	Connections PeriodAggregate
	Memory      PeriodAggregate
}

// newTotals returns an empty Totals ready to accumulate.
func newTotals() Totals {
	return Totals{
		Codes:     make(map[string]uint64),
		Endpoints: make(map[Endpoint]PeriodAggregate),
	}
}

// codeKey renders an HTTP status code the way the status-code histogram
// keys it: "<code> <reason phrase>", e.g. "200 OK". Unknown codes fall
// back to just the numeric code.
func codeKey(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return strconv.Itoa(code)
	}

	return strconv.Itoa(code) + " " + text
}
