// Package ops serves the operational HTTP surface: liveness and
// readiness probes and the Prometheus metrics endpoint. The bot itself
// talks to Telegram over long polling, so this is the only listener the
// service exposes.
package ops

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/XaviFortes/tesla-tracker/internal/store"
)

// Server is the ops HTTP server.
type Server struct {
	echo  *echo.Echo
	store store.Store
	log   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer builds the ops server. The store is probed by /readyz.
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{
		echo:  echo.New(),
		store: st,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(recovery(s.log))
	s.echo.Use(requestLog(s.log))
	s.echo.Use(requestMetrics())

	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/readyz", s.readyz)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start listens on addr and blocks until the server is shut down.
func (s *Server) Start(addr string) error {
	s.log.Info("ops server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (*Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readyz returns 200 if the store is reachable, 503 otherwise.
func (s *Server) readyz(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.log.Warn("readiness probe failed", "error", err)
		return c.JSON(
			http.StatusServiceUnavailable,
			map[string]string{"status": "unavailable"},
		)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
