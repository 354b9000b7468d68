// Package server exposes the ingestion trigger and subscription endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newdok/mailingest/internal/ingest"
	"github.com/newdok/mailingest/internal/store"
)

// Ingestor is the ingestion job as seen by the HTTP surface.
type Ingestor interface {
	Run(ctx context.Context) ingest.RunSummary
	Status() ingest.JobStatus
}

// Server wires routes onto an echo instance.
type Server struct {
	echo   *echo.Echo
	store  store.Store
	ingest Ingestor
	log    *zap.Logger
}

// New builds a Server. Every route except health and metrics requires a
// bearer token signed with jwtSecret.
func New(st store.Store, ing Ingestor, jwtSecret string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, store: st, ingest: ing, log: log}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	e.GET("/healthz", s.healthz)
	e.GET("/readyz", s.readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	protected := e.Group("")
	protected.Use(JWTAuth(jwtSecret))

	protected.POST("/ingestion/run", s.runIngestion)
	protected.GET("/ingestion/status", s.ingestionStatus)

	protected.GET("/subscriptions", s.listSubscriptions)
	protected.PATCH("/subscriptions/pause", s.pauseSubscription)
	protected.PATCH("/subscriptions/resume", s.resumeSubscription)

	protected.GET("/articles/count", s.articleCount)

	return s
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			s.log.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		}
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
