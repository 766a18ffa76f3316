package stats

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"
)

type capturedAtKey struct{}

// Middleware wraps an http.Handler with the per-request capture hook (C4).
// started_at is taken when this wrapper is entered, so time spent in any
// middleware outside it is not counted.
func Middleware(state *State, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !state.Config().Enabled {
				next.ServeHTTP(w, r)
				return
			}

			startedAt := time.Now()
			ctx := context.WithValue(r.Context(), capturedAtKey{}, startedAt)
			r = r.WithContext(ctx)

			state.IncomingRequest()
			defer state.CompletedRequest()

			sw := &statusCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			sample := Sample{
				Endpoint:    Endpoint{Method: r.Method, Path: r.URL.Path},
				StartedAt:   startedAt,
				TimeTakenUs: elapsedMicros(startedAt),
				StatusCode:  sw.status,
				Connections: state.ActiveConnections(),
				MemoryBytes: sampleMemoryBytes(),
			}

			sender, ok := state.SampleSender()
			if !ok {
				return
			}

			select {
			case sender <- sample:
			default:
				if logger != nil {
					logger.Warn("stats sample queue full, dropping sample",
						"endpoint", sample.Endpoint.String())
				}
			}
		})
	}
}

// elapsedMicros returns the non-negative microsecond duration since
// startedAt, clamped to the uint64 range.
func elapsedMicros(startedAt time.Time) uint64 {
	d := time.Since(startedAt)
	if d < 0 {
		return 0
	}

	us := d.Microseconds()
	if us < 0 {
		return 0
	}

	if us > math.MaxInt64 {
		return math.MaxUint64
	}

	//nolint:gosec // us is non-negative, checked above
	return uint64(us)
}

// statusCapture records the status code written to the response so it can
// be included in the sample after the handler returns.
type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped ResponseWriter to [http.ResponseController],
// the same reason instrumentedMux's statusRecorder needs it one layer
// further out: the stats live feed's WebSocket upgrade hijacks the raw
// connection, which only works if every wrapper in front of it forwards
// Hijack through to the real http.ResponseWriter.
func (s *statusCapture) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
