// Package httpserver runs the telestatd HTTP handler with graceful
// shutdown: listen in the background, then drain in-flight requests within
// a bounded timeout once the context is canceled.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds the listen address and the http.Server timeouts the caller
// wants applied to the main application server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps an [http.Server] with a Run method that blocks until ctx is
// cancelled, then shuts down gracefully.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New constructs a Server bound to handler, not yet listening.
func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Run starts listening and blocks until ctx is cancelled, at which point it
// shuts the server down gracefully (waiting for in-flight requests to
// finish or the shutdown timeout to elapse). Hijacked connections, such as
// open WebSocket feed connections, are neither closed nor waited for. It
// returns any error other than a clean shutdown.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)

		serveErr := s.httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen and serve: %w", serveErr)

			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return <-errCh
}
