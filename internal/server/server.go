// Package server provides the HTTP API for running scans as a service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentScans bounds scans running at once when no limit is given.
const DefaultMaxConcurrentScans = 2

// Server serves scans and estimates over HTTP.
type Server struct {
	echo    *echo.Echo
	rt      *core.Runtime
	baseCfg *contract.Config
	logger  *logging.Logger
	slots   *semaphore.Weighted
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxScans int64
}

// WithMaxConcurrentScans sets how many scans may run at once. Further scan
// requests are rejected with 429 until a slot frees up.
func WithMaxConcurrentScans(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxScans = int64(n)
		}
	}
}

// NewServer creates a new HTTP server backed by rt.
func NewServer(baseCfg *contract.Config, rt *core.Runtime, logger *logging.Logger, opts ...Option) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime cannot be nil")
	}
	if baseCfg == nil {
		return nil, fmt.Errorf("base config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := serverOptions{maxScans: DefaultMaxConcurrentScans}
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		rt:      rt,
		baseCfg: baseCfg,
		logger:  logger,
		slots:   semaphore.NewWeighted(o.maxScans),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/scans", s.handleScan)
	v1.POST("/estimates", s.handleEstimate)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string             `json:"error"`
	Kind  contract.ErrorKind `json:"kind"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleScan runs a scan synchronously. Partial scans are successful responses;
// the summary says how complete they are.
func (s *Server) handleScan(c echo.Context) error {
	cfg, err := s.bindConfig(c)
	if err != nil {
		return s.fail(c, contract.NewScanError(contract.KindInvalidRequest, "bind", err))
	}

	if !s.slots.TryAcquire(1) {
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "too many scans in progress",
			Kind:  contract.KindInvalidRequest,
		})
	}
	defer s.slots.Release(1)

	ctx := c.Request().Context()
	session := core.NewSession(cfg.Repository, cfg.Scan)
	ctx = logging.WithSessionID(ctx, session.ID)
	s.logger.Info(ctx, "scan requested", zap.String("repository", cfg.Repository.String()))

	summary, _, err := s.rt.Scan(ctx, session)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleEstimate(c echo.Context) error {
	cfg, err := s.bindConfig(c)
	if err != nil {
		return s.fail(c, contract.NewScanError(contract.KindInvalidRequest, "bind", err))
	}

	res, err := s.rt.Estimate(c.Request().Context(), cfg.Repository, cfg.Scan)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) bindConfig(c echo.Context) (*contract.Config, error) {
	var req contract.ScanOverrides
	if err := c.Bind(&req); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	return s.baseCfg.CloneWithOverrides(req)
}

func (s *Server) fail(c echo.Context, err error) error {
	kind := contract.KindOf(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err), zap.String("kind", string(kind)))
	} else {
		s.logger.Warn(c.Request().Context(), "request rejected", zap.Error(err), zap.String("kind", string(kind)))
	}
	return c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
}

// StatusFor maps a scan error onto an HTTP status code.
func StatusFor(err error) int {
	switch contract.KindOf(err) {
	case contract.KindInvalidRequest:
		return http.StatusBadRequest
	case contract.KindAuthenticationFailure:
		return http.StatusUnauthorized
	case contract.KindRepositoryUnreachable, contract.KindCloneFailure:
		return http.StatusBadGateway
	case contract.KindTimeout:
		return http.StatusGatewayTimeout
	case contract.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ServeHTTP lets the server be driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
