package stats

import "time"

// Overview is the snapshot returned by the overview query: process-wide
// counters plus, for each of times/connections/memory, a named-period fold
// (ascending by configured seconds) with a trailing "all" bucket copied
// straight from totals.
type Overview struct {
	StartedAt           time.Time
	LastCompletedSecond time.Time
	UptimeSeconds       int64
	ActiveConnections   uint64
	TotalRequests       uint64
	Codes               map[string]uint64
	Times               []NamedAggregate
	Endpoints           map[string]PeriodAggregate
	Connections         []NamedAggregate
	Memory              []NamedAggregate
}

// NamedAggregate pairs a period name ("second", "minute", ..., "all") with
// its folded PeriodAggregate, preserving the ascending-by-seconds iteration
// order the overview is required to report in.
type NamedAggregate struct {
	Name      string
	Aggregate PeriodAggregate
}

// Query is the read-only view over State backing the overview and history
// endpoints (C6). It holds no state of its own.
type Query struct {
	state *State
}

// NewQuery constructs a query surface bound to state.
func NewQuery(state *State) *Query {
	return &Query{state: state}
}

// Overview computes the full snapshot. Per the read protocol, the buffers
// section and the totals section are each read under their own short lock
// and need not be atomic with respect to each other.
func (q *Query) Overview(now time.Time) Overview {
	periods := q.state.Config().SortedPeriods()

	var timesFolds, connFolds, memFolds []NamedAggregate

	q.state.WithBuffersRead(func(b Buffers) {
		for _, p := range periods {
			timesFolds = append(timesFolds, NamedAggregate{Name: p.Name, Aggregate: foldNewest(b.Responses, p.Seconds)})
			connFolds = append(connFolds, NamedAggregate{Name: p.Name, Aggregate: foldNewest(b.Connections, p.Seconds)})
			memFolds = append(memFolds, NamedAggregate{Name: p.Name, Aggregate: foldNewest(b.Memory, p.Seconds)})
		}
	})

	var codes map[string]uint64
	var endpoints map[string]PeriodAggregate
	var totalsTimes, totalsConn, totalsMem PeriodAggregate

	q.state.WithTotals(func(totals *Totals) {
		codes = make(map[string]uint64, len(totals.Codes))
		for k, v := range totals.Codes {
			codes[k] = v
		}

		endpoints = make(map[string]PeriodAggregate, len(totals.Endpoints))
		for ep, agg := range totals.Endpoints {
			endpoints[ep.String()] = agg
		}

		totalsTimes = totals.Times
		totalsConn = totals.Connections
		totalsMem = totals.Memory
	})

	timesFolds = append(timesFolds, NamedAggregate{Name: "all", Aggregate: totalsTimes})
	connFolds = append(connFolds, NamedAggregate{Name: "all", Aggregate: totalsConn})
	memFolds = append(memFolds, NamedAggregate{Name: "all", Aggregate: totalsMem})

	return Overview{
		StartedAt:           q.state.StartedAt().Truncate(time.Second),
		LastCompletedSecond: q.state.LastCompletedSecond(),
		UptimeSeconds:       int64(now.Truncate(time.Second).Sub(q.state.StartedAt().Truncate(time.Second)).Seconds()),
		ActiveConnections:   q.state.ActiveConnections(),
		TotalRequests:       q.state.TotalRequests(),
		Codes:               codes,
		Times:               timesFolds,
		Endpoints:           endpoints,
		Connections:         connFolds,
		Memory:              memFolds,
	}
}

// foldNewest merges the newest n entries of rb via Merge, folding
// oldest-first. Folding is commutative for min/max/count; the average
// update is order-sensitive but folding in arrival order here mirrors how
// the aggregator itself built these entries in arrival order, so it
// reproduces the same result merge would produce computed live.
func foldNewest(rb *RingBuffer[PeriodAggregate], n int) PeriodAggregate {
	entries := rb.Newest(n)

	var agg PeriodAggregate
	for i := len(entries) - 1; i >= 0; i-- {
		agg.Merge(entries[i])
	}

	return agg
}

// HistoryBuffer names which ring buffer a history query selects.
type HistoryBuffer string

const (
	HistoryBufferTimes       HistoryBuffer = "times"
	HistoryBufferConnections HistoryBuffer = "connections"
	HistoryBufferMemory      HistoryBuffer = "memory"
)

// HistoryParams are the parsed query parameters for the history endpoint.
// Buffer is empty to mean "all three"; From is the zero time to mean "no
// lower bound"; Limit is zero to mean "unbounded".
type HistoryParams struct {
	Buffer HistoryBuffer
	From   time.Time
	Limit  int
}

// HistoryResult mirrors the history endpoint's response shape: the
// selected buffers' newest entries, newest-first, stopped by whichever of
// From/Limit fires first.
type HistoryResult struct {
	LastCompletedSecond time.Time
	Times               []PeriodAggregate
	Connections         []PeriodAggregate
	Memory              []PeriodAggregate
}

// History returns the requested buffer slice(s).
func (q *Query) History(params HistoryParams) HistoryResult {
	var result HistoryResult
	result.LastCompletedSecond = q.state.LastCompletedSecond()

	q.state.WithBuffersRead(func(b Buffers) {
		if params.Buffer == "" || params.Buffer == HistoryBufferTimes {
			result.Times = sliceBuffer(b.Responses, params)
		}

		if params.Buffer == "" || params.Buffer == HistoryBufferConnections {
			result.Connections = sliceBuffer(b.Connections, params)
		}

		if params.Buffer == "" || params.Buffer == HistoryBufferMemory {
			result.Memory = sliceBuffer(b.Memory, params)
		}
	})

	return result
}

// sliceBuffer walks rb newest-first, stopping at the first entry older
// than params.From or once params.Limit entries have been collected,
// whichever fires first.
func sliceBuffer(rb *RingBuffer[PeriodAggregate], params HistoryParams) []PeriodAggregate {
	limit := rb.Len()
	if params.Limit > 0 && params.Limit < limit {
		limit = params.Limit
	}

	out := make([]PeriodAggregate, 0, limit)

	for i := range rb.Len() {
		entry, ok := rb.At(i)
		if !ok {
			break
		}

		if !params.From.IsZero() && entry.StartedAt.Before(params.From) {
			break
		}

		out = append(out, entry)

		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}

	return out
}
