// Package httpapi exposes the orchestrator's operational surface: a
// liveness probe and a Prometheus scrape endpoint. It does not expose
// the domain's read/write operations — those are driven by the
// scheduler and queue processor, not by request/response handlers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"go.mongodb.org/mongo-driver/mongo"
)

// Server is a minimal echo server for health and metrics only.
type Server struct {
	echo *echo.Echo
	log  zerolog.Logger
}

// New builds the server with /healthz and /metrics registered. client
// may be nil in tests that don't care about dependency health.
func New(client *mongo.Client, reg *prometheus.Registry, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, log: log}

	e.GET("/healthz", func(c echo.Context) error {
		if client == nil {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx, nil); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": "database unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	e.GET("/metrics", echo.WrapHandler(handler))

	return s
}

// Start blocks serving on address until the server is shut down.
func (s *Server) Start(address string) error {
	s.log.Info().Str("address", address).Msg("starting http api")
	err := s.echo.Start(address)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for tests to drive directly.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
