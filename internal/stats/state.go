package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// NamedPeriod is one entry of the configured reporting windows (e.g.
// "minute" -> 60 seconds). Periods are folded in ascending Seconds order,
// with an implicit "all" bucket always appended last by the query surface.
type NamedPeriod struct {
	Name    string
	Seconds int
}

// Config is the narrow slice of host configuration the telemetry core
// needs. It intentionally does not depend on the host's configuration
// loader (internal/config) — the host translates its own config into this
// shape, keeping the core decoupled from file/env loading concerns.
type Config struct {
	Enabled              bool
	TimingBufferSize     int
	ConnectionBufferSize int
	MemoryBufferSize     int
	WSPingInterval       time.Duration
	WSPingTimeout        time.Duration
	Periods              []NamedPeriod
}

// SortedPeriods returns cfg.Periods sorted ascending by Seconds, the order
// the overview endpoint folds and reports them in.
func (cfg Config) SortedPeriods() []NamedPeriod {
	out := make([]NamedPeriod, len(cfg.Periods))
	copy(out, cfg.Periods)

	sort.Slice(out, func(i, j int) bool { return out[i].Seconds < out[j].Seconds })

	return out
}

// Buffers holds the three fixed-capacity, newest-first ring buffers. Only
// the aggregator worker (C5) writes; the query surface (C6) reads
// concurrently under the State's buffers lock.
type Buffers struct {
	Responses   *RingBuffer[PeriodAggregate]
	Connections *RingBuffer[PeriodAggregate]
	Memory      *RingBuffer[PeriodAggregate]
}

// State is the shared mutable root referenced by the capture hook, the
// aggregator worker, and the query handlers. Its locking discipline is
// deliberately uneven: counters are lock-free atomics on the hot path;
// totals and buffers use short-held locks only the aggregator ever writes
// to; the sample-sender/broadcaster handles are set exactly once at
// aggregator start-up and read thereafter under a coarse RWMutex.
type State struct {
	cfg Config

	startedAt time.Time

	connections atomic.Int64
	requests    atomic.Int64

	lastSecondMu sync.RWMutex
	lastSecond   time.Time

	totalsMu sync.Mutex
	totals   Totals

	buffersMu sync.RWMutex
	buffers   Buffers

	handleMu     sync.RWMutex
	sampleSender chan<- Sample
	broadcaster  *Bus
}

// NewState constructs telemetry state for the given configuration. Ring
// buffers are always allocated at the configured capacity (zero when
// disabled), matching the "reserve once, constant footprint" discipline —
// allocation happens here rather than lazily so a misconfigured capacity
// fails at start-up, not gradually under load.
func NewState(cfg Config) *State {
	capTiming, capConn, capMem := cfg.TimingBufferSize, cfg.ConnectionBufferSize, cfg.MemoryBufferSize
	if !cfg.Enabled {
		capTiming, capConn, capMem = 0, 0, 0
	}

	return &State{
		cfg:       cfg,
		startedAt: time.Now(),
		totals:    newTotals(),
		buffers: Buffers{
			Responses:   NewRingBuffer[PeriodAggregate](capTiming),
			Connections: NewRingBuffer[PeriodAggregate](capConn),
			Memory:      NewRingBuffer[PeriodAggregate](capMem),
		},
	}
}

// Config returns the configuration the state was constructed with.
func (s *State) Config() Config { return s.cfg }

// StartedAt returns the process start instant.
func (s *State) StartedAt() time.Time { return s.startedAt }

// IncomingRequest records the start of a request: increments the in-flight
// connection count and the total request count. Both are relaxed,
// advisory atomics — never a contested lock.
func (s *State) IncomingRequest() {
	s.requests.Add(1)
	s.connections.Add(1)
}

// CompletedRequest decrements the in-flight connection count.
func (s *State) CompletedRequest() {
	s.connections.Add(-1)
}

// ActiveConnections returns the current in-flight request count.
func (s *State) ActiveConnections() uint64 {
	v := s.connections.Load()
	if v < 0 {
		return 0
	}

	return uint64(v)
}

// TotalRequests returns the total observed request count.
func (s *State) TotalRequests() uint64 {
	//nolint:gosec // requests is only ever incremented
	return uint64(s.requests.Load())
}

// LastCompletedSecond returns the most recently finalised aggregate window.
func (s *State) LastCompletedSecond() time.Time {
	s.lastSecondMu.RLock()
	defer s.lastSecondMu.RUnlock()

	return s.lastSecond
}

// setLastCompletedSecond is called only by the aggregator after each advance.
func (s *State) setLastCompletedSecond(t time.Time) {
	s.lastSecondMu.Lock()
	defer s.lastSecondMu.Unlock()

	s.lastSecond = t
}

// WithTotals runs fn with exclusive access to totals. Used by the
// aggregator to commit a sample and by the query surface to snapshot.
// fn must not block or perform I/O.
func (s *State) WithTotals(fn func(*Totals)) {
	s.totalsMu.Lock()
	defer s.totalsMu.Unlock()

	fn(&s.totals)
}

// WithBuffersRead runs fn with a read lock on the buffers, for the query
// surface. fn must not block or perform I/O.
func (s *State) WithBuffersRead(fn func(Buffers)) {
	s.buffersMu.RLock()
	defer s.buffersMu.RUnlock()

	fn(s.buffers)
}

// withBuffersWrite runs fn with the exclusive buffers lock, used only by
// the aggregator during an advance.
func (s *State) withBuffersWrite(fn func(*Buffers)) {
	s.buffersMu.Lock()
	defer s.buffersMu.Unlock()

	fn(&s.buffers)
}

// SetHandles installs the sample-sender and broadcaster exactly once, at
// aggregator start-up. Calling it more than once overwrites the previous
// handles; callers must only call it from Worker.Run.
func (s *State) SetHandles(sender chan<- Sample, bus *Bus) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	s.sampleSender = sender
	s.broadcaster = bus
}

// SampleSender returns the sample queue's send handle. ok is false before
// the aggregator has started or when telemetry is disabled.
func (s *State) SampleSender() (sender chan<- Sample, ok bool) {
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()

	return s.sampleSender, s.sampleSender != nil
}

// Broadcaster returns the fan-out bus. ok is false before the aggregator
// has started or when telemetry is disabled.
func (s *State) Broadcaster() (bus *Bus, ok bool) {
	s.handleMu.RLock()
	defer s.handleMu.RUnlock()

	return s.broadcaster, s.broadcaster != nil
}
