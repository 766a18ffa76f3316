package stats

import (
	"math"
	"time"
)

// PeriodAggregate holds the running average, maximum, minimum, and count of
// values observed over a period of time, plus the wall-clock time the
// period started. It is a pure value type: the zero value is the
// merge-identity (count == 0).
//
// Invariant: when Count > 0, Minimum <= Average <= Maximum.
type PeriodAggregate struct {
	StartedAt time.Time `json:"started_at"`
	Average   float64   `json:"average"`
	Maximum   uint64    `json:"maximum"`
	Minimum   uint64    `json:"minimum"`
	Count     uint64    `json:"count"`
}

// Initialize returns an aggregate seeded from a single observed value:
// average, maximum, and minimum all equal value, and count is 1.
func Initialize(value uint64) PeriodAggregate {
	return PeriodAggregate{
		//nolint:gosec // values are request-scoped (latencies, byte counts); never near 2^53
		Average: float64(value),
		Maximum: value,
		Minimum: value,
		Count:   1,
	}
}

// Merge folds other into self in place. It is the only order-sensitive
// operation in the core: the streaming weighted mean must be computed by a
// single goroutine in arrival order (see the aggregator worker) — folding
// out of order or in parallel would introduce observable jitter.
//
// self.StartedAt is never modified by Merge.
func (p *PeriodAggregate) Merge(other PeriodAggregate) {
	if (other.Minimum < p.Minimum && other.Count > 0) || p.Count == 0 {
		p.Minimum = other.Minimum
	}

	if other.Maximum > p.Maximum {
		p.Maximum = other.Maximum
	}

	newCount := saturatingAddUint64(p.Count, other.Count)

	if p.Count > 0 && other.Count > 0 {
		weight := float64(other.Count) / float64(newCount)
		p.Average = p.Average*(1-weight) + other.Average*weight
	} else if p.Count == 0 && other.Count > 0 {
		p.Average = other.Average
	}

	p.Count = newCount
}

// saturatingAddUint64 adds two uint64 values, clamping to math.MaxUint64
// instead of wrapping on overflow.
func saturatingAddUint64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}

	return sum
}
