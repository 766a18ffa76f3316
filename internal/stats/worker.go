package stats

import (
	"context"
	"log/slog"
	"time"
)

// sampleQueueSize is the buffer depth for the sample channel. The baseline
// design calls for an unbounded queue; Go channels have no such thing, so
// a large buffer is used as the effectively-unbounded approximation, sized
// well above any plausible per-second request volume this core is meant
// for. Sends remain non-blocking regardless (see Middleware).
const sampleQueueSize = 65536

// Worker is the aggregator (C5): the single long-lived task that folds
// samples into per-second accumulators, advances the wall-clock second,
// and commits completed seconds to the totals and ring buffers.
type Worker struct {
	state  *State
	logger *slog.Logger

	currentSecond time.Time
	timing        PeriodAggregate
	connections   PeriodAggregate
	memory        PeriodAggregate
}

// NewWorker constructs an aggregator bound to state. Run must be called to
// start it; construction does no I/O.
func NewWorker(state *State, logger *slog.Logger) *Worker {
	return &Worker{state: state, logger: logger}
}

// Run executes the start-up contract and then the main loop until ctx is
// cancelled or the sample channel is closed. If telemetry is disabled, Run
// returns immediately without installing any handles.
func (w *Worker) Run(ctx context.Context) {
	cfg := w.state.Config()
	if !cfg.Enabled {
		return
	}

	samples := make(chan Sample, sampleQueueSize)
	bus := NewBus()
	w.state.SetHandles(samples, bus)

	w.currentSecond = floorToSecond(time.Now())
	w.resetAccumulators()

	sleepUntilNextSecond(ctx, w.currentSecond)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if w.logger != nil {
				w.logger.Info("stats aggregator stopping", "reason", "context cancelled")
			}

			return
		case <-ticker.C:
			w.process(nil)
		case sample, ok := <-samples:
			if !ok {
				if w.logger != nil {
					w.logger.Info("stats aggregator stopping", "reason", "sample channel closed")
				}

				return
			}

			w.process(&sample)
		}
	}
}

func (w *Worker) resetAccumulators() {
	w.timing = PeriodAggregate{}
	w.connections = PeriodAggregate{}
	w.memory = PeriodAggregate{}
}

// process is the processor algorithm: fold an optional sample into the
// running per-second accumulators, then advance the current second if the
// sample (or the tick) has moved past it. Ticks are timestamped with the
// wall clock; tests drive processAt directly with a synthetic instant to
// stay deterministic.
func (w *Worker) process(sample *Sample) {
	w.processAt(sample, time.Now())
}

func (w *Worker) processAt(sample *Sample, tickNow time.Time) {
	var newSecond time.Time
	if sample != nil {
		newSecond = floorToSecond(sample.StartedAt)
	} else {
		newSecond = floorToSecond(tickNow)
	}

	if sample != nil {
		w.foldSample(*sample)
	}

	if newSecond.After(w.currentSecond) {
		w.advance(newSecond)
	}
}

func (w *Worker) foldSample(sample Sample) {
	timing := Initialize(sample.TimeTakenUs)
	conns := Initialize(sample.Connections)
	mem := Initialize(sample.MemoryBytes)

	w.timing.Merge(timing)
	w.connections.Merge(conns)
	w.memory.Merge(mem)

	w.state.WithTotals(func(totals *Totals) {
		totals.Codes[codeKey(sample.StatusCode)]++
		totals.Times.Merge(timing)

		existing := totals.Endpoints[sample.Endpoint]
		if existing.Count == 0 {
			existing.StartedAt = sample.StartedAt
		}

		existing.Merge(timing)
		totals.Endpoints[sample.Endpoint] = existing

		totals.Connections.Merge(conns)
		totals.Memory.Merge(mem)
	})
}

// advance finalises the current second, fills any idle gap, and publishes
// exactly one broadcast message for the genuine (non-idle-gap) entry.
func (w *Worker) advance(newSecond time.Time) {
	elapsed := int(newSecond.Sub(w.currentSecond) / time.Second)
	if elapsed < 1 {
		return
	}

	genuineTiming := w.timing
	genuineTiming.StartedAt = w.currentSecond
	genuineConnections := w.connections
	genuineConnections.StartedAt = w.currentSecond
	genuineMemory := w.memory
	genuineMemory.StartedAt = w.currentSecond

	w.state.withBuffersWrite(func(buffers *Buffers) {
		buffers.Responses.PushFront(genuineTiming)
		buffers.Connections.PushFront(genuineConnections)
		buffers.Memory.PushFront(genuineMemory)

		for i := 1; i < elapsed; i++ {
			gapSecond := w.currentSecond.Add(time.Duration(i) * time.Second)
			buffers.Responses.PushFront(PeriodAggregate{StartedAt: gapSecond})
			buffers.Connections.PushFront(PeriodAggregate{StartedAt: gapSecond})
			buffers.Memory.PushFront(PeriodAggregate{StartedAt: gapSecond})
		}
	})

	w.resetAccumulators()

	w.state.setLastCompletedSecond(w.currentSecond)
	w.currentSecond = newSecond

	// Idle-gap seconds never generate a message: if no sample was folded
	// before this advance, the "genuine" entry is itself an idle entry.
	if genuineTiming.Count > 0 {
		if bus, ok := w.state.Broadcaster(); ok {
			bus.Publish(AllStatsForPeriod{
				Times:       genuineTiming,
				Connections: genuineConnections,
				Memory:      genuineMemory,
			})
		}
	}
}

func floorToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// sleepUntilNextSecond blocks until the start of second+1, so the first
// tick boundary aligns with a wall-clock second.
func sleepUntilNextSecond(ctx context.Context, second time.Time) {
	target := second.Add(time.Second)

	wait := time.Until(target)
	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
