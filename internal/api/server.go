package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/config"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/auth"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/delta"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/events"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/journal"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/logging"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/metrics"
	"github.com/mynamerahulkumar/srpprivatewasdailyhrbot/internal/registry"
)

// RateLimiter provides simple in-memory rate limiting per endpoint.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the control-plane HTTP API: bot lifecycle, live exchange views,
// the lifecycle event stream over WebSocket, and Prometheus metrics.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	exchange    delta.Exchange
	reg         *registry.Registry
	bus         *events.Bus
	authService *auth.Service
	journal     *journal.Journal
	rateLimiter *RateLimiter
	hub         *WSHub
	log         *logging.Logger
	startedAt   time.Time
}

// NewServer creates the API server. The journal may be nil when PostgreSQL
// is disabled; the event history route then returns 503.
func NewServer(
	cfg *config.Config,
	exchange delta.Exchange,
	reg *registry.Registry,
	bus *events.Bus,
	authService *auth.Service,
	jrnl *journal.Journal,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	origins := cfg.Server.AllowedOrigins
	if origins == "" || origins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		cfg:         cfg,
		exchange:    exchange,
		reg:         reg,
		bus:         bus,
		authService: authService,
		journal:     jrnl,
		rateLimiter: NewRateLimiter(cfg.Server.RateLimitPerMin, time.Minute),
		hub:         NewWSHub(bus),
		log:         logging.WithComponent("api"),
		startedAt:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// rateLimitMiddleware limits requests per client and endpoint.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(c.ClientIP() + ":" + path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/ws", s.handleWebSocket)

	s.router.POST("/api/v1/auth/login", s.handleLogin)
	s.router.POST("/api/v1/auth/refresh", s.handleRefresh)
	s.router.GET("/api/v1/auth/status", func(c *gin.Context) {
		enabled := s.authService != nil && s.authService.Enabled()
		c.JSON(http.StatusOK, gin.H{"auth_enabled": enabled})
	})

	api := s.router.Group("/api/v1")
	api.Use(s.rateLimitMiddleware())
	api.Use(auth.Middleware(s.authService))
	{
		api.POST("/bot/start", s.handleStartBot)
		api.GET("/bots", s.handleListBots)
		api.GET("/bot/status/:id", s.handleBotStatus)
		api.POST("/bot/stop/:id", s.handleStopBot)
		api.DELETE("/bot/:id", s.handleDeleteBot)

		api.GET("/bot/orders/:id", s.handleBotOrders)
		api.GET("/bot/position/:id", s.handleBotPosition)
		api.GET("/bot/events/:id", s.handleBotEvents)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("starting http server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// errorResponse sends a uniform error body.
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}
