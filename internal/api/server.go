// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/oakline/compass/internal/api/handler/api"
	"github.com/oakline/compass/internal/api/middleware"
	"github.com/oakline/compass/internal/config"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/metrics"
	"github.com/oakline/compass/internal/router"
	"github.com/oakline/compass/internal/runner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP surface over the routing and analysis services.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Deps are the services the server exposes.
type Deps struct {
	Router  *router.Router
	Hist    *histdata.Service
	Runner  *runner.Runner
	Metrics *metrics.Registry
	Version string
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(mux)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, deps)
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(cfg *config.Config, deps Deps) {
	routing := apihandler.NewRoutingHandler(deps.Router, deps.Hist)
	data := apihandler.NewDataHandler(deps.Router)
	run := apihandler.NewRunHandler(deps.Runner)
	health := apihandler.NewHealthHandler(deps.Router, deps.Hist, deps.Version)

	s.mux.HandleFunc("/api/v1/status", routing.Status)
	s.mux.HandleFunc("/api/v1/set-symbol", routing.SetSymbol)
	s.mux.HandleFunc("/api/v1/set-time-range", routing.SetTimeRange)
	s.mux.HandleFunc("/api/v1/available-symbols", routing.Symbols)
	s.mux.HandleFunc("/api/v1/time-ranges", routing.TimeRanges)
	s.mux.HandleFunc("/api/v1/reset", routing.Reset)

	s.mux.HandleFunc("/api/v1/market-data", data.MarketData)
	s.mux.HandleFunc("/api/v1/portfolio", data.Portfolio)
	s.mux.HandleFunc("/api/v1/candidates", data.Candidates)
	s.mux.HandleFunc("/api/v1/sector-heatmap", data.SectorHeatmap)

	// The analysis run is the expensive endpoint; it alone is rate limited.
	var runHandler http.Handler = http.HandlerFunc(run.Run)
	if cfg.RateLimit.Enabled {
		var onReject func()
		if deps.Metrics != nil {
			onReject = deps.Metrics.RecordRateLimited
		}
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, onReject)
		runHandler = limiter.Wrap(runHandler)
	}
	s.mux.Handle("/api/v1/run", runHandler)

	s.mux.HandleFunc("/api/health", health.Health)

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		s.mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
