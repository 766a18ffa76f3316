package stats

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// wireAggregate is the external wire shape of a PeriodAggregate: average,
// maximum, minimum, and count only. started_at is deliberately dropped —
// it is internal bookkeeping the aggregator uses to fold ring-buffer
// entries, not part of the documented response contract (§6), and the
// ground-truth original strips it the same way via its own
// StatsResponseForPeriod (original_source/src/stats/responses.rs).
type wireAggregate struct {
	Average float64 `json:"average"`
	Maximum uint64  `json:"maximum"`
	Minimum uint64  `json:"minimum"`
	Count   uint64  `json:"count"`
}

func toWireAggregate(p PeriodAggregate) wireAggregate {
	return wireAggregate{Average: p.Average, Maximum: p.Maximum, Minimum: p.Minimum, Count: p.Count}
}

func toWireAggregates(entries []PeriodAggregate) []wireAggregate {
	out := make([]wireAggregate, len(entries))
	for i, e := range entries {
		out[i] = toWireAggregate(e)
	}

	return out
}

// orderedAggregates marshals a sequence of named aggregates as a single
// JSON object while preserving insertion order, rather than the
// alphabetical key order encoding/json imposes on a Go map. This is what
// lets the overview endpoint's ascending-by-seconds period order (with
// "all" last, per §4.6) survive onto the wire, mirroring the original's use
// of an IndexMap for the same field (original_source/src/stats/responses.rs).
type orderedAggregates []NamedAggregate

func (o orderedAggregates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, na := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(na.Name)
		if err != nil {
			return nil, err
		}

		val, err := json.Marshal(toWireAggregate(na.Aggregate))
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// overviewResponse mirrors the overview endpoint's wire shape.
type overviewResponse struct {
	StartedAt   string                   `json:"started_at"`
	LastSecond  string                   `json:"last_second"`
	Uptime      int64                    `json:"uptime"`
	Active      uint64                   `json:"active"`
	Requests    uint64                   `json:"requests"`
	Codes       map[string]uint64        `json:"codes"`
	Times       orderedAggregates        `json:"times"`
	Endpoints   map[string]wireAggregate `json:"endpoints"`
	Connections orderedAggregates        `json:"connections"`
	Memory      orderedAggregates        `json:"memory"`
}

const wireTimeLayout = "2006-01-02T15:04:05"

func endpointsToWire(endpoints map[string]PeriodAggregate) map[string]wireAggregate {
	out := make(map[string]wireAggregate, len(endpoints))
	for k, v := range endpoints {
		out[k] = toWireAggregate(v)
	}

	return out
}

// Handlers wires the query surface (C6) to net/http. It holds a State
// and logger; Mux registers every route this core owns under the given
// http.ServeMux.
type Handlers struct {
	query  *Query
	state  *State
	logger *slog.Logger
}

// NewHandlers constructs the HTTP surface over state.
func NewHandlers(state *State, logger *slog.Logger) *Handlers {
	return &Handlers{query: NewQuery(state), state: state, logger: logger}
}

// Mux registers /api/stats, /api/stats/history, and /api/stats/feed on mux.
func (h *Handlers) Mux(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", h.handleOverview)
	mux.HandleFunc("GET /api/stats/history", h.handleHistory)
	mux.HandleFunc("GET /api/stats/feed", h.handleFeed)
}

func (h *Handlers) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview := h.query.Overview(time.Now())

	resp := overviewResponse{
		StartedAt:   overview.StartedAt.UTC().Format(wireTimeLayout),
		LastSecond:  overview.LastCompletedSecond.UTC().Format(wireTimeLayout),
		Uptime:      overview.UptimeSeconds,
		Active:      overview.ActiveConnections,
		Requests:    overview.TotalRequests,
		Codes:       overview.Codes,
		Times:       orderedAggregates(overview.Times),
		Endpoints:   endpointsToWire(overview.Endpoints),
		Connections: orderedAggregates(overview.Connections),
		Memory:      orderedAggregates(overview.Memory),
	}

	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	LastSecond  string          `json:"last_second"`
	Times       []wireAggregate `json:"times,omitempty"`
	Connections []wireAggregate `json:"connections,omitempty"`
	Memory      []wireAggregate `json:"memory,omitempty"`
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	params, err := parseHistoryParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := h.query.History(params)

	writeJSON(w, http.StatusOK, historyResponse{
		LastSecond:  result.LastCompletedSecond.UTC().Format(wireTimeLayout),
		Times:       toWireAggregates(result.Times),
		Connections: toWireAggregates(result.Connections),
		Memory:      toWireAggregates(result.Memory),
	})
}

func parseHistoryParams(r *http.Request) (HistoryParams, error) {
	q := r.URL.Query()

	var params HistoryParams

	switch buffer := HistoryBuffer(q.Get("buffer")); buffer {
	case "", HistoryBufferTimes, HistoryBufferConnections, HistoryBufferMemory:
		params.Buffer = buffer
	default:
		return params, errInvalidHistoryBuffer
	}

	if from := q.Get("from"); from != "" {
		t, err := time.Parse(wireTimeLayout, from)
		if err != nil {
			return params, errInvalidHistoryFrom
		}

		params.From = t
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return params, errInvalidHistoryLimit
		}

		params.Limit = n
	}

	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// upgrader is shared across feed connections; origin checking is left to
// the host's own CORS/auth middleware ahead of this handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedState is the small state machine described for the live feed:
// Subscribed -> PingSent -> Subscribed | Closed.
type feedState int

const (
	feedSubscribed feedState = iota
	feedPingSent
)

func (h *Handlers) handleFeed(w http.ResponseWriter, r *http.Request) {
	bus, ok := h.state.Broadcaster()
	if !ok {
		if h.logger != nil {
			h.logger.Warn("stats live feed requested while telemetry disabled")
		}

		http.Error(w, "telemetry disabled", http.StatusServiceUnavailable)

		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("stats live feed upgrade failed", "error", err)
		}

		return
	}
	defer conn.Close()

	filter := HistoryBuffer(r.URL.Query().Get("type"))

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	cfg := h.state.Config()
	pingInterval := cfg.WSPingInterval
	pingTimeout := cfg.WSPingTimeout

	if pingInterval <= 0 {
		pingInterval = 60 * time.Second
	}

	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}

	h.runFeed(conn, ch, filter, pingInterval, pingTimeout)
}

// runFeed drives the connection until it closes, folding together bus
// payloads, incoming control frames, and the ping/pong/timeout state
// machine. It runs two goroutines: one blocking on conn.ReadMessage (the
// only way to receive control frames with gorilla/websocket) feeding a
// channel, and this one selecting over that channel, the bus, and the ping
// and timeout tickers.
func (h *Handlers) runFeed(
	conn *websocket.Conn,
	ch <-chan AllStatsForPeriod,
	filter HistoryBuffer,
	pingInterval, pingTimeout time.Duration,
) {
	incoming := make(chan wsFrame, 8)

	conn.SetPongHandler(func(string) error {
		select {
		case incoming <- wsFrame{kind: wsFramePong}:
		default:
		}

		return nil
	})

	go readFeedFrames(conn, incoming)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	timeoutTicker := time.NewTicker(pingTimeout)
	defer timeoutTicker.Stop()

	state := feedSubscribed
	lastPing := time.Now()

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}

			if err := conn.WriteJSON(feedPayload(payload, filter)); err != nil {
				if h.logger != nil {
					h.logger.Warn("stats live feed write failed", "error", err)
				}

				return
			}

		case <-ticker.C:
			if state == feedPingSent && time.Since(lastPing) > pingTimeout {
				if h.logger != nil {
					h.logger.Info("stats live feed ping timeout, closing")
				}

				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			state = feedPingSent
			lastPing = time.Now()

		case <-timeoutTicker.C:
			if state == feedPingSent && time.Since(lastPing) > pingTimeout {
				if h.logger != nil {
					h.logger.Info("stats live feed ping timeout, closing")
				}

				return
			}

		case frame, ok := <-incoming:
			if !ok {
				return
			}

			switch frame.kind {
			case wsFrameClose:
				return
			case wsFramePong:
				state = feedSubscribed
			case wsFrameOther:
				if h.logger != nil {
					h.logger.Warn("stats live feed ignoring unexpected frame")
				}
			}
		}
	}
}

type wsFrameKind int

const (
	wsFrameClose wsFrameKind = iota
	wsFramePong
	wsFrameOther
)

type wsFrame struct {
	kind wsFrameKind
}

// readFeedFrames blocks on conn.ReadMessage in a loop, classifying each
// frame and forwarding it to out, until the connection errors or closes.
// gorilla/websocket answers pings automatically and delivers pongs via the
// pong handler, not ReadMessage, so this loop mainly observes close and
// unexpected data frames.
func readFeedFrames(conn *websocket.Conn, out chan<- wsFrame) {
	defer close(out)

	for {
		msgType, _, err := conn.ReadMessage()
		if err != nil {
			out <- wsFrame{kind: wsFrameClose}
			return
		}

		switch msgType {
		case websocket.CloseMessage:
			out <- wsFrame{kind: wsFrameClose}
			return
		case websocket.TextMessage, websocket.BinaryMessage:
			out <- wsFrame{kind: wsFrameOther}
		}
	}
}

// feedAll is the live feed's three-keyed wire shape when no measurement
// filter is given, each entry stripped to the same wireAggregate contract
// as the overview and history endpoints.
type feedAll struct {
	Times       wireAggregate `json:"times"`
	Connections wireAggregate `json:"connections"`
	Memory      wireAggregate `json:"memory"`
}

func feedPayload(payload AllStatsForPeriod, filter HistoryBuffer) any {
	switch filter {
	case HistoryBufferTimes:
		return toWireAggregate(payload.Times)
	case HistoryBufferConnections:
		return toWireAggregate(payload.Connections)
	case HistoryBufferMemory:
		return toWireAggregate(payload.Memory)
	default:
		return feedAll{
			Times:       toWireAggregate(payload.Times),
			Connections: toWireAggregate(payload.Connections),
			Memory:      toWireAggregate(payload.Memory),
		}
	}
}
