// Package graceful wraps the demo binary's ops HTTP server (metrics and
// health endpoints) so in-flight scrapes finish before the process exits.
package graceful

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Server runs an http.Server until its context is canceled, then drains it
// within the configured timeout.
type Server struct {
	httpServer      *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer constructs a graceful wrapper around srv.
func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		httpServer:      srv,
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// ListenAndServe starts the server and blocks until ctx is canceled, then
// shuts it down gracefully. Returns the shutdown error if draining failed,
// otherwise any listen error other than http.ErrServerClosed.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	errCh := make(chan error, 1)
	var once sync.Once

	go func() {
		s.log.Info("ops server listening", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.log.Error("ops server error", slog.Any("error", err))
		}

		once.Do(func() { errCh <- err })
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.Info("shutting down ops server", slog.Duration("timeout", s.shutdownTimeout))

	shutdownErr := s.httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		s.log.Error("ops server shutdown error", slog.Any("error", shutdownErr))
		return shutdownErr
	}

	select {
	case listenErr := <-errCh:
		if listenErr != nil && listenErr != http.ErrServerClosed {
			return listenErr
		}
	default:
	}

	return nil
}
