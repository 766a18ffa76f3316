package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaytel/telestat/internal/config"
	"github.com/relaytel/telestat/internal/httpserver"
	"github.com/relaytel/telestat/internal/observability"
	"github.com/relaytel/telestat/internal/stats"
	"github.com/relaytel/telestat/internal/version"
)

// shutdownTimeout bounds how long Run waits for in-flight requests to
// drain. Open /api/stats/feed WebSocket connections are hijacked and are
// not waited for.
const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var configPath string
	var diagAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the telestatd HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, diagAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config TOML file")
	cmd.Flags().StringVar(&diagAddr, "diagnostics-addr", ":6060", "address for /healthz, /readyz, /metrics")

	return cmd
}

func runServe(ctx context.Context, configPath, diagAddr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeServe
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogLevel = logLevelFromString(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.OTLPHeaders = cfg.Observability.OTLPHeaders
	obsCfg.SampleRatio = cfg.Observability.SampleRatio

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	diag, err := observability.NewDiagnosticsServer(diagAddr, providers.Meter)
	if err != nil {
		return fmt.Errorf("start diagnostics server: %w", err)
	}
	defer diag.Close()

	redMetrics, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init RED metrics: %w", err)
	}

	state := stats.NewState(statsConfigFromHost(cfg.Stats))

	worker := stats.NewWorker(state, providers.Logger)
	go worker.Run(ctx)

	handler := observability.HTTPMiddleware(providers.Tracer, providers.Logger, buildMux(state, providers, redMetrics))

	server := httpserver.New(httpserver.Config{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, handler, providers.Logger)

	return server.Run(ctx, shutdownTimeout)
}

// buildMux registers the telemetry core's endpoints plus the ping and
// version endpoints a client uses to probe a running server out of band.
func buildMux(state *stats.State, providers observability.Providers, redMetrics *observability.REDMetrics) http.Handler {
	mux := http.NewServeMux()

	handlers := stats.NewHandlers(state, providers.Logger)
	handlers.Mux(mux)

	mux.HandleFunc("GET /api/ping", handlePing)
	mux.HandleFunc("GET /api/version", handleVersion)

	captured := stats.Middleware(state, providers.Logger)(mux)

	return instrumentedMux{mux: captured, metrics: redMetrics}
}

// instrumentedMux records RED metrics for every request in addition to
// serving it, independent of the stats core's own in-memory aggregates.
type instrumentedMux struct {
	mux     http.Handler
	metrics *observability.REDMetrics
}

func (m instrumentedMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	done := m.metrics.TrackInflight(r.Context(), r.URL.Path)

	sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	m.mux.ServeHTTP(sw, r)

	done()

	status := "ok"
	if sw.status >= http.StatusInternalServerError {
		status = "error"
	}

	m.metrics.RecordRequest(r.Context(), r.URL.Path, status, time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped ResponseWriter to [http.ResponseController], so
// the stats live feed's WebSocket upgrade can still reach Hijack through
// this wrapper and the one observability.HTTPMiddleware adds above it.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"version": version.Version})
}

func logLevelFromString(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}

// statsConfigFromHost translates the host's TOML/env-loaded stats section
// into the telemetry core's narrow Config. The core stays ignorant of
// viper and TOML; the host is the only place the two config shapes meet.
func statsConfigFromHost(cfg config.StatsConfig) stats.Config {
	periods := make([]stats.NamedPeriod, 0, len(cfg.Periods))
	for name, seconds := range cfg.Periods {
		periods = append(periods, stats.NamedPeriod{Name: name, Seconds: seconds})
	}

	return stats.Config{
		Enabled:              cfg.Enabled,
		TimingBufferSize:     cfg.TimingBufferSize,
		ConnectionBufferSize: cfg.ConnectionBufferSize,
		MemoryBufferSize:     cfg.MemoryBufferSize,
		WSPingInterval:       time.Duration(cfg.WSPingIntervalSeconds) * time.Second,
		WSPingTimeout:        time.Duration(cfg.WSPingTimeoutSeconds) * time.Second,
		Periods:              periods,
	}
}
