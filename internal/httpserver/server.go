// Package httpserver is the operational HTTP surface: health, Prometheus
// metrics and crowd level lookups.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/tphakala/parkpulse/internal/crowd"
	"github.com/tphakala/parkpulse/internal/datastore/entities"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability"
)

const (
	serviceName = "httpserver"

	pathHealth      = "/healthz"
	pathMetrics     = "/metrics"
	pathCrowdLevel  = "/api/v1/parks/:id/crowd-level"
	pathCrowdLevels = "/api/v1/crowd-levels"

	DefaultShutdownTimeout = 10 * time.Second
	readTimeout            = 15 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	maxBatchParks          = 100
)

var (
	serverLogger   *slog.Logger
	serverLevelVar = new(slog.LevelVar)
)

func init() {
	serverLevelVar.Set(slog.LevelInfo)
	serverLogger = logging.NewServiceLogger(serviceName, serverLevelVar)
}

// CrowdEngine computes crowd levels.
type CrowdEngine interface {
	ComputeWithTimeout(ctx context.Context, parkID uint, d time.Duration) crowd.Result
	ComputeBatch(ctx context.Context, parks []crowd.ParkRef) map[uint]crowd.Result
}

// ParkLookup resolves parks.
type ParkLookup interface {
	GetPark(ctx context.Context, id uint) (*entities.Park, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Server serves the operational endpoints.
type Server struct {
	echo         *echo.Echo
	addr         string
	engine       CrowdEngine
	parks        ParkLookup
	metrics      *observability.Metrics
	dbPing       Pinger
	crowdTimeout time.Duration
	startTime    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes the registry of m on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDatabasePing adds a database check to /healthz.
func WithDatabasePing(p Pinger) Option {
	return func(s *Server) {
		s.dbPing = p
	}
}

// WithCrowdTimeout sets the computation budget of crowd level requests.
func WithCrowdTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.crowdTimeout = d
		}
	}
}

// New creates the server listening on addr.
func New(addr string, engine CrowdEngine, parks ParkLookup, opts ...Option) *Server {
	s := &Server{
		echo:         echo.New(),
		addr:         addr,
		engine:       engine,
		parks:        parks,
		crowdTimeout: crowd.DefaultTimeout,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = readTimeout
	s.echo.Server.WriteTimeout = writeTimeout
	s.echo.Server.IdleTimeout = idleTimeout

	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestLogger(serverLogger))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET(pathHealth, s.healthCheck)
	if s.metrics != nil {
		s.echo.GET(pathMetrics, echo.WrapHandler(s.metrics.Handler()))
	}
	s.echo.GET(pathCrowdLevel, s.getCrowdLevel)
	s.echo.GET(pathCrowdLevels, s.getCrowdLevels)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve listens until ctx is canceled, then shuts down gracefully.
// It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		serverLogger.Info("HTTP server starting", "address", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			serverLogger.Error("HTTP server failed", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		serverLogger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	serverLogger.Info("HTTP server stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "http-server"
}
