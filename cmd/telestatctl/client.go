package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/relaytel/telestat/internal/stats"
)

// client is a thin HTTP client over a running telestatd's JSON endpoints.
// It mirrors the wire shapes in internal/stats/handlers.go rather than
// importing its unexported response types.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// overviewResponse mirrors the /api/stats wire shape.
type overviewResponse struct {
	StartedAt   string                          `json:"started_at"`
	LastSecond  string                          `json:"last_second"`
	Uptime      int64                           `json:"uptime"`
	Active      uint64                          `json:"active"`
	Requests    uint64                          `json:"requests"`
	Codes       map[string]uint64               `json:"codes"`
	Times       map[string]stats.PeriodAggregate `json:"times"`
	Endpoints   map[string]stats.PeriodAggregate `json:"endpoints"`
	Connections map[string]stats.PeriodAggregate `json:"connections"`
	Memory      map[string]stats.PeriodAggregate `json:"memory"`
}

// historyResponse mirrors the /api/stats/history wire shape.
type historyResponse struct {
	LastSecond  string                  `json:"last_second"`
	Times       []stats.PeriodAggregate `json:"times,omitempty"`
	Connections []stats.PeriodAggregate `json:"connections,omitempty"`
	Memory      []stats.PeriodAggregate `json:"memory,omitempty"`
}

func (c *client) ping() (time.Duration, error) {
	start := time.Now()

	resp, err := c.http.Get(c.baseURL + "/api/ping")
	if err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}

	return time.Since(start), nil
}

func (c *client) overview() (overviewResponse, error) {
	var out overviewResponse

	resp, err := c.http.Get(c.baseURL + "/api/stats")
	if err != nil {
		return out, fmt.Errorf("fetch overview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("fetch overview: unexpected status %d", resp.StatusCode)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return out, fmt.Errorf("decode overview: %w", decodeErr)
	}

	return out, nil
}

func (c *client) history(buffer string, limit int) (historyResponse, error) {
	var out historyResponse

	q := url.Values{}
	if buffer != "" {
		q.Set("buffer", buffer)
	}

	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	resp, err := c.http.Get(c.baseURL + "/api/stats/history?" + q.Encode())
	if err != nil {
		return out, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("fetch history: unexpected status %d", resp.StatusCode)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return out, fmt.Errorf("decode history: %w", decodeErr)
	}

	return out, nil
}
