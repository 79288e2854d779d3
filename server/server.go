// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/coachmesh/core"
	"github.com/hupe1980/coachmesh/tool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HeaderSessionID carries the (possibly generated) session id on replies.
const HeaderSessionID = "X-Session-ID"

// Orchestrator is the engine surface used by the HTTP layer.
type Orchestrator interface {
	core.Orchestrator
	Memory() core.MemoryStore
	Sessions() core.SessionStore
}

// Options configures the server.
type Options struct {
	Name    string
	Version string

	// RateLimit is the sustained request rate per second; 0 disables limiting.
	RateLimit float64
	Burst     int

	// Tools backs GET /api/v1/tools. Nil serves an empty list.
	Tools *tool.Registry

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger

	// NewSessionID generates ids for requests without one.
	NewSessionID func() string
}

// Server provides the HTTP endpoints of coachmesh.
type Server struct {
	echo   *echo.Echo
	orch   Orchestrator
	opts   Options
	logger *zap.Logger
}

// New creates a server over the orchestrator and registers all routes.
func New(orch Orchestrator, optFns ...func(o *Options)) *Server {
	opts := Options{
		Name:         "coachmesh API",
		Version:      "dev",
		NewSessionID: uuid.NewString,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(opts.Logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(opts.Logger))
	if opts.RateLimit > 0 {
		e.Use(rateLimiter(rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, opts.Burst))))
	}

	s := &Server{echo: e, orch: orch, opts: opts, logger: opts.Logger}
	s.registerRoutes()

	return s
}

// Echo exposes the underlying router, mainly for tests and extra routes.
func (s *Server) Echo() *echo.Echo { return s.echo }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.echo.ServeHTTP(w, r) }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/pose/infer", s.handlePose)
	v1.POST("/food/estimate", s.handleFood)
	v1.POST("/mind/short", s.handleMind)
	v1.POST("/agents/:agent/execute", s.handleExecute)
	v1.POST("/multi", s.handleMulti)
	v1.GET("/agents", s.handleAgents)
	v1.GET("/tools", s.handleTools)
	v1.GET("/session/:id/summary", s.handleSummary)
	v1.DELETE("/session/:id", s.handleDeleteSession)
	v1.DELETE("/user/:id/memory", s.handleClearUser)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

func rateLimiter(limiter *rate.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.Error("unhandled request error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Message: msg})
		}
		if err != nil {
			logger.Warn("failed to write error response", zap.Error(err))
		}
	}
}

// sessionID returns id, or a fresh one when empty, and echoes it on the reply.
func (s *Server) sessionID(c echo.Context, id string) string {
	if id == "" {
		id = s.opts.NewSessionID()
	}
	c.Response().Header().Set(HeaderSessionID, id)
	return id
}

func (s *Server) agentIDs() []core.AgentID {
	states := s.orch.ListAgents()
	ids := make([]core.AgentID, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// statusFor maps a response to its HTTP status.
func statusFor(resp core.AgentResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Reason {
	case core.ReasonAgentNotFound:
		return http.StatusNotFound
	case core.ReasonGuardrailRejected, core.ReasonOutputBlocked:
		return http.StatusUnprocessableEntity
	case core.ReasonTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
