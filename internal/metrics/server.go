package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/witrpc/internal/logger"
)

// Server exposes a prometheus.Gatherer's metrics over HTTP at /metrics.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to addr (e.g. ":9090"),
// serving the metrics registered against reg.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts the server and blocks until ctx is cancelled, at which point it
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics: serving", logger.Operation("listen"))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		_ = s.httpServer.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
