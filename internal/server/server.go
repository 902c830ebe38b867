// Package server exposes a read-only HTTP API over the blob store and the
// indexing run registry.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/errors"
	"github.com/zsiec/gre2g/internal/health"
	"github.com/zsiec/gre2g/internal/logger"
	"github.com/zsiec/gre2g/internal/registry"
)

const healthInterval = 30 * time.Second

// Server represents the API server.
type Server struct {
	config        *config.ServerConfig
	metricsConfig config.MetricsConfig
	router        *mux.Router
	httpServer    *http.Server
	metricsServer *http.Server
	logger        *logrus.Logger
	store         blobstore.Store
	runs          registry.Registry
	healthMgr     *health.Manager
	errorHandler  *errors.ErrorHandler
	limiter       *rate.Limiter
}

// New creates a server and registers its routes. The blob store check is
// always registered; extra checkers are added after it.
func New(cfg *config.Config, log *logrus.Logger, store blobstore.Store, runs registry.Registry, checkers ...health.Checker) *Server {
	s := &Server{
		config:        &cfg.Server,
		metricsConfig: cfg.Metrics,
		router:        mux.NewRouter(),
		logger:        log,
		store:         store,
		runs:          runs,
		healthMgr:     health.NewManager(log),
		errorHandler:  errors.NewErrorHandler(log),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}

	s.healthMgr.Register(health.NewStoreChecker(store))
	for _, c := range checkers {
		s.healthMgr.Register(c)
	}

	s.setupRoutes()
	return s
}

// Addr returns the API listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.WrapIOError(err, "failed to listen on "+s.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go s.healthMgr.StartPeriodicChecks(healthCtx, healthInterval)

	if s.metricsConfig.Enabled && s.metricsConfig.Port != s.config.Port {
		s.startMetricsServer()
	}

	s.logger.WithField("addr", ln.Addr().String()).Info("Starting API server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info("API server shutdown complete")
	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	if s.metricsConfig.Enabled && s.metricsConfig.Port == s.config.Port {
		s.router.Handle(s.metricsConfig.Path, promhttp.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/levels", s.handleLevel).Methods("GET")
	api.HandleFunc("/levels/{path:.*}", s.handleLevel).Methods("GET")
	api.HandleFunc("/files/{path:.+}", s.handleFile).Methods("GET")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")

	// A subrouter answers mismatches itself, so it needs its own handlers.
	notFound := http.HandlerFunc(s.errorHandler.HandleNotFound)
	notAllowed := http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}
}

func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle(s.metricsConfig.Path, promhttp.Handler())

	addr := net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.metricsConfig.Port))
	s.metricsServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		s.logger.WithField("addr", addr).Info("Starting metrics server")
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Metrics server error")
		}
	}()
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
