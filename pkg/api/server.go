package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nimbusfs/nimbus/internal/logger"
)

// Server wraps the HTTP server hosting the Nimbus API.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates an API server on the given listen address.
//
// Parameters:
//   - listenAddr: address to bind, e.g. ":8080"
//   - handler: the router built by NewRouter
//   - shutdownTimeout: how long Stop waits for in-flight requests
func NewServer(listenAddr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:              listenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start runs the server until it fails or the context is cancelled. On
// cancellation the server is shut down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Info("API server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop shuts the server down gracefully, waiting up to the configured
// shutdown timeout for in-flight requests to finish.
func (s *Server) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("Shutting down API server")

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("API server shutdown: %w", shutdownErr)
		}
	})
	return err
}
