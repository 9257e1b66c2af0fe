package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	apihttp "github.com/GriffinCanCode/freezeguard/internal/api/http"
	"github.com/GriffinCanCode/freezeguard/internal/api/middleware"
	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/freezeguard/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Server wraps the companion HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	guard    *guard.Guard
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	logger   *zap.Logger
	config   *config.Config

	unobserve func()
}

// NewServer creates a server exposing g. The guard's lifecycle stays
// with the caller.
func NewServer(cfg *config.Config, g *guard.Guard, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	unobserve := metrics.Observe(g.Bus())

	if !cfg.Guard.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	s := &Server{
		router:    router,
		guard:     g,
		metrics:   metrics,
		registry:  registry,
		logger:    logger,
		config:    cfg,
		unobserve: unobserve,
	}

	handlers := apihttp.NewHandlers(g, metrics, logger.Named("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(g.Bus(), metrics, logger.Named("ws"))
	router.GET("/ws", wsHandler.HandleConnection)

	prom := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	router.GET("/metrics", func(c *gin.Context) {
		s.refreshGauges()
		prom.ServeHTTP(c.Writer, c.Request)
	})

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metrics collector
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Close detaches metrics from the guard's event bus
func (s *Server) Close() error {
	if s.unobserve != nil {
		s.unobserve()
		s.unobserve = nil
	}
	return nil
}

func (s *Server) refreshGauges() {
	snap := s.guard.Snapshot()
	s.metrics.SetGuardGauges(snap.Requests.Pending, snap.OpenModals, snap.Recovery.Attempts, snap.IdleFor)
}
