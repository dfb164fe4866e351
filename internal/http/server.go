// Package http provides the REST API for taskd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/config"
	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/internal/services"
	"github.com/fyrsmithlabs/taskd/pkg/auth"
)

// Server provides HTTP endpoints for taskd.
type Server struct {
	echo     *echo.Echo
	services services.Registry
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
	now      func() time.Time

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BasePath prefixes every API route, e.g. "/api". /metrics is always
	// served at the root.
	BasePath string

	// Production hides error details from responses.
	Production bool

	CORSOrigins []string
	BodyLimit   string
}

// ConfigFromApp derives the HTTP config from the application config.
func ConfigFromApp(cfg *config.Config) *Config {
	return &Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		BasePath:    cfg.Server.BasePath,
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.Server.CORSOrigins,
		BodyLimit:   cfg.Server.BodyLimit,
	}
}

// Option configures the server.
type Option func(*Server)

// WithMeterProvider records HTTP metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) { s.meterProvider = mp }
}

// WithTracerProvider records server spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracerProvider = tp }
}

// WithClock overrides time.Now for the health timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new HTTP server.
func NewServer(reg services.Registry, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if reg == nil || reg.Tasks() == nil || reg.Users() == nil || reg.Tokens() == nil {
		return nil, fmt.Errorf("service registry is incomplete")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 5000,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: reg,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.metrics = newHTTPMetrics(
		s.meterProvider.Meter(httpInstrumentationName),
		s.tracerProvider.Tracer(httpInstrumentationName),
		logger.Underlying(),
	)

	e.HTTPErrorHandler = s.handleError

	// Middleware, outermost first. The request logger renders handler
	// errors itself so the metrics and log see the final status.
	e.Use(middleware.RequestID())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	tokens := s.services.Tokens()
	requireAuth := auth.RequireBearer(tokens)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group(s.config.BasePath)
	api.GET("/health", s.handleHealth)

	a := api.Group("/auth")
	a.POST("/login", s.handleLogin)
	a.POST("/register", s.handleRegister)
	a.GET("/profile", s.handleProfile, requireAuth)
	a.POST("/refresh-token", s.handleRefreshToken, requireAuth)
	a.GET("/session", s.handleSession, auth.OptionalBearer(tokens))

	// Routes kept from the original user router.
	u := api.Group("/users")
	u.POST("/login", s.handleLogin)
	u.POST("", s.handleRegister)

	t := api.Group("/tasks", requireAuth)
	t.GET("", s.handleListTasks)
	t.POST("", s.handleCreateTask)
	t.GET("/:id", s.handleGetTask)
	t.PUT("/:id", s.handleUpdateTask)
	t.DELETE("/:id", s.handleDeleteTask)
}

// requestLogger attaches the request id to the request context and logs
// every request once it has been fully handled.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(req.WithContext(ctx))

		if err := next(c); err != nil {
			c.Error(err)
		}

		// Handlers replace the request to add the user id; log with the
		// latest context.
		ctx = c.Request().Context()
		status := c.Response().Status
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int64("bytes_out", c.Response().Size),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error(ctx, "http request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn(ctx, "http request", fields...)
		default:
			s.logger.Info(ctx, "http request", fields...)
		}
		return nil
	}
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until the server stops and
// returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Addr returns the listener address once started, or "" before.
func (s *Server) Addr() string {
	addr := s.echo.ListenerAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
