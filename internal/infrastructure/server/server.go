package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/netsandbox/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/domain/computer"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/infrastructure/monitoring"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	manager *computer.Manager
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	return NewServerWithDeps(cfg, computer.Deps{}, nil)
}

// NewServerWithDeps creates a server whose computers use deps. A nil logger
// is built from the logging configuration.
func NewServerWithDeps(cfg *config.Config, deps computer.Deps, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.FromEnv(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing netsandbox server",
		zap.String("port", cfg.Server.Port),
		zap.Bool("http_enabled", cfg.Network.HTTPEnabled),
		zap.Bool("websocket_enabled", cfg.Network.WebsocketEnabled),
		zap.String("rules_file", cfg.Network.RulesFile),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	metrics.RegisterRuntime()

	manager, err := computer.NewManager(cfg.Network, deps, logger.Component("computer"))
	if err != nil {
		metrics.Close()
		return nil, fmt.Errorf("failed to create computer manager: %w", err)
	}
	manager.WithMetrics(metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(manager, metrics, logger.Component("http"))
	wsHandler := ws.NewHandler(manager, metrics, logger.Component("stream"))
	metricsAggregator := apihttp.NewMetricsAggregator(metrics, manager)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Computer management
	router.GET("/computers", handlers.ListComputers)
	router.POST("/computers", handlers.CreateComputer)
	router.GET("/computers/:id", handlers.GetComputer)
	router.DELETE("/computers/:id", handlers.DeleteComputer)

	// Sandboxed network operations
	router.POST("/computers/:id/http/request", handlers.Request)
	router.POST("/computers/:id/http/check", handlers.CheckURL)
	router.POST("/computers/:id/websocket", handlers.Websocket)
	router.POST("/computers/:id/websocket/:handle/send", handlers.Send)
	router.GET("/computers/:id/websocket/:handle/receive", handlers.Receive)
	router.POST("/computers/:id/websocket/:handle/close", handlers.CloseWebsocket)

	// Event stream
	router.GET("/computers/:id/events", wsHandler.HandleEvents)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", metricsAggregator.GetAggregatedMetrics)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		manager: manager,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router exposes the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Manager returns the computer manager.
func (s *Server) Manager() *computer.Manager {
	return s.manager
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	// Closing the computers ends their event streams and sockets.
	s.manager.Close()
	s.metrics.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
