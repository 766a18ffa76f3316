package stats_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaytel/telestat/internal/stats"
)

func testConfig(enabled bool) stats.Config {
	return stats.Config{
		Enabled:              enabled,
		TimingBufferSize:     10,
		ConnectionBufferSize: 10,
		MemoryBufferSize:     10,
		WSPingInterval:       60 * time.Second,
		WSPingTimeout:        10 * time.Second,
		Periods: []stats.NamedPeriod{
			{Name: "second", Seconds: 1},
			{Name: "minute", Seconds: 60},
		},
	}
}

func TestMiddlewareEnqueuesSampleAfterResponse(t *testing.T) {
	t.Parallel()

	state := stats.NewState(testConfig(true))
	sampleCh := make(chan stats.Sample, 1)
	state.SetHandles(sampleCh, stats.NewBus())

	handler := stats.Middleware(state, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/widgets/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)

	select {
	case sample := <-sampleCh:
		assert.Equal(t, "GET /widgets/42", sample.Endpoint.String())
		assert.Equal(t, http.StatusTeapot, sample.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}

	assert.Equal(t, uint64(0), state.ActiveConnections())
	assert.Equal(t, uint64(1), state.TotalRequests())
}

func TestMiddlewareSkipsWorkWhenDisabled(t *testing.T) {
	t.Parallel()

	state := stats.NewState(testConfig(false))

	handler := stats.Middleware(state, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ignored", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(0), state.TotalRequests())
}

func TestMiddlewareDropsSampleWhenQueueFull(t *testing.T) {
	t.Parallel()

	state := stats.NewState(testConfig(true))
	sampleCh := make(chan stats.Sample) // unbuffered, never drained
	state.SetHandles(sampleCh, stats.NewBus())

	handler := stats.Middleware(state, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request handling blocked on a full sample queue")
	}

	require.Equal(t, http.StatusOK, rec.Code)
}
