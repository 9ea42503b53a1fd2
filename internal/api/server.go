// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/zhunle/internal/api/handler/api"
	"github.com/newthinker/zhunle/internal/api/handler/web"
	"github.com/newthinker/zhunle/internal/api/middleware"
	"github.com/newthinker/zhunle/internal/api/response"
	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for zhunle
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
	apiKey     string
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	TemplatesDir string
	APIKey       string
	SessionTTL   time.Duration
	MetricsPath  string
}

// Dependencies holds the components the routes are served from.
type Dependencies struct {
	App     *app.App
	Metrics *metrics.Registry // nil disables HTTP metrics and the metrics endpoint
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.App == nil {
		return nil, fmt.Errorf("app dependency required")
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   deps,
		apiKey: cfg.APIKey,
	}

	// Set up routes
	if err := s.setupRoutes(cfg); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics, cfg.MetricsPath)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) error {
	// Web UI routes
	webHandler, err := web.NewHandler(cfg.TemplatesDir, s.deps.App, cfg.SessionTTL, s.logger)
	if err != nil {
		return fmt.Errorf("creating web handler: %w", err)
	}

	s.mux.HandleFunc("GET /{$}", webHandler.Landing)
	s.mux.HandleFunc("POST /backtest", webHandler.CreateBacktest)
	s.mux.HandleFunc("GET /backtest/{id}", webHandler.Backtest)
	s.mux.HandleFunc("POST /backtest/{id}/selection", webHandler.Selection)
	s.mux.HandleFunc("POST /backtest/{id}/refresh", webHandler.Refresh)

	// API routes
	backtests := apihandler.NewBacktestHandler(s.deps.App, cfg.SessionTTL)
	s.handleAPI("GET /api/v1/health", s.handleHealth)
	s.handleAPI("GET /api/v1/backtest/{id}/view", backtests.View)
	s.handleAPI("POST /api/v1/backtest/{id}/selection", backtests.Select)

	if s.deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}

	return nil
}

func (s *Server) handleAPI(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, middleware.APIKeyAuth(s.apiKey)(h))
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"app":    s.deps.App.Stats(),
	})
}
