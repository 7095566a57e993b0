package observe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asif-amar/semdrift/internal/health"
)

// Server exposes /metrics, /healthz, and /readyz over HTTP for the duration
// of a run. It is only started when observe.prometheus_addr is configured;
// short CLI invocations work fine without it.
type Server struct {
	srv *http.Server
}

// NewServer builds the metrics server. The Prometheus registry scraped at
// /metrics is the default one the otel prometheus exporter registers into.
// checkers feed the /readyz probe (e.g. an archive ping).
func NewServer(addr string, m *Metrics, checkers ...health.Checker) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Middleware(m)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in a background goroutine and returns immediately. Errors
// other than a clean shutdown are logged, not returned; a broken metrics
// endpoint must not abort an experiment run.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
