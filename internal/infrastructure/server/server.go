package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/MonteIPC/internal/api/http"
	"github.com/GriffinCanCode/MonteIPC/internal/api/middleware"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/logging"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/monitoring"
)

// Server wraps the status HTTP server of one run.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	listener net.Listener
	logger   *logging.Logger
}

// NewServer builds the router for run and binds cfg.Addr. Use ":0" to pick a
// free port; Addr reports the bound address.
func NewServer(cfg config.StatusConfig, dev bool, run apihttp.Run, metrics *monitoring.Metrics, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	router := NewRouter(cfg, dev, run, metrics, logger)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	return &Server{
		router:   router,
		http:     &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logger,
	}, nil
}

// NewRouter wires middleware and routes.
func NewRouter(cfg config.StatusConfig, dev bool, run apihttp.Run, metrics *monitoring.Metrics, logger *logging.Logger) *gin.Engine {
	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: middleware.DefaultCORSConfig().AllowHeaders,
		MaxAge:       12 * time.Hour,
	}))
	if cfg.RequestsPerSecond > 0 {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RequestsPerSecond),
			zap.Int("burst", cfg.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(run, metrics, logger)
	stream := handlers.NewStream(cfg.StreamInterval, originChecker(cfg.AllowOrigins))

	router.GET("/health", handlers.Health)
	router.GET("/status", handlers.Status)
	router.GET("/metrics", handlers.Metrics())
	router.GET("/stream", stream.HandleConnection)
	router.POST("/control/:action", handlers.Control)

	return router
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 || middleware.AllowsAnyOrigin(origins) {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Router exposes the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info("Status API listening", zap.String("addr", s.Addr()))
	go func() {
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status API stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
