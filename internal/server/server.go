package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classpoll/config"
	"classpoll/internal/handler"
	"classpoll/internal/middleware"
	"classpoll/internal/redis"
	"classpoll/internal/transport/httpdto"
	"classpoll/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	onShutdown []func()
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Poll      *handler.PollHandler
	WebSocket *WebSocketHandler
}

// HealthCheck is one dependency reported by /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// OnShutdown registers fn to run after the HTTP server stopped, in
// registration order.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, limiter *redis.RateLimiter, checks ...HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.FrontendURL))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	health := s.healthHandler(checks)
	s.engine.GET("/health", health)

	api := s.engine.Group("/api")
	api.GET("/health", health)

	limited := middleware.RateLimitMiddleware(limiter, s.logger)
	polls := api.Group("/polls")
	{
		polls.POST("", limited, handlers.Poll.Create)
		polls.POST("/create", limited, handlers.Poll.Create)
		polls.GET("", handlers.Poll.List)
		polls.GET("/all", handlers.Poll.List)
		polls.GET("/active", handlers.Poll.Active)
		polls.GET("/:id", handlers.Poll.Get)
		polls.POST("/:id/end", limited, handlers.Poll.End)
		polls.POST("/:id/vote", limited, handlers.Poll.Vote)
		polls.GET("/:id/check-vote/:studentName", handlers.Poll.CheckVote)
	}

	if handlers.WebSocket != nil {
		s.engine.GET("/ws", handlers.WebSocket.Handle)
	}
}

func (s *Server) healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp := httpdto.HealthResponse{Status: "healthy", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				resp.Checks[hc.Name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[hc.Name] = "ok"
		}
		c.JSON(status, resp)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil && s.logger != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
	}

	// hijacked websocket connections are not tracked by Shutdown
	for _, fn := range s.onShutdown {
		fn()
	}

	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
