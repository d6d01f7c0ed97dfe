package remoteserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/ostreesync/internal/logger"
)

// Config configures a Server: which directory to serve and which address
// to listen on.
type Config struct {
	Root string
	Addr string
}

// Server wraps an *http.Server around NewRouter with the same
// start-in-a-goroutine, graceful-shutdown-on-context-cancel shape used
// across this codebase's other long-running HTTP listeners.
type Server struct {
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// NewServer builds a Server serving cfg.Root at cfg.Addr. The server is
// created stopped; call Start to begin serving.
func NewServer(cfg Config) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: NewRouter(cfg.Root),
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("remote server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("remote server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}
