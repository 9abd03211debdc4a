package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	configparser "github.com/orgoj/sentryroute/internal/config"
	"github.com/orgoj/sentryroute/internal/handler"
	"github.com/orgoj/sentryroute/internal/logger"
	"github.com/orgoj/sentryroute/internal/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Dependencies holds the dependencies needed by the server.
type Dependencies struct {
	Config    *configparser.Config
	Routes    *route.Manager
	AppLogger *logger.AppLogger
	// Components is listed by /health when set.
	Components interface{ Names() []string }
	// PanicLogger receives recovered handler panics, category server.panic.
	PanicLogger *slog.Logger
	// Gatherer backs /metrics; defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *configparser.Config
	appLogger  *logger.AppLogger
	// Rate limiting specific
	limiters   map[string]*rate.Limiter
	limiterMu  sync.Mutex
	rateLimit  rate.Limit
	burstLimit int
	deps       Dependencies
}

// NewServer creates a new server instance with its dependencies.
func NewServer(deps Dependencies) (*Server, error) {
	// Validate dependencies
	if deps.Config == nil {
		panic("server: Config dependency cannot be nil")
	}
	if deps.Routes == nil {
		panic("server: Routes dependency cannot be nil")
	}
	if deps.AppLogger == nil {
		deps.AppLogger = logger.GetAppLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	switch deps.Config.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: invalid trusted_proxies: %w", err)
	}

	server := &Server{
		router:    router,
		config:    deps.Config,
		appLogger: deps.AppLogger,
		limiters:  make(map[string]*rate.Limiter),
		deps:      deps,
	}

	router.Use(requestIDMiddleware())
	router.Use(gin.CustomRecovery(server.recoverPanic))
	router.Use(server.accessLogMiddleware())

	// Initialize rate limiter settings
	if deps.Config.Server.RequestLimits.RateLimit > 0 {
		// Convert requests per minute to requests per second
		server.rateLimit = rate.Limit(float64(deps.Config.Server.RequestLimits.RateLimit) / 60.0)
		// Allow bursts up to the per-minute limit
		server.burstLimit = deps.Config.Server.RequestLimits.RateLimit
		server.appLogger.Info("Rate limiting enabled for /log: Rate=%.2f req/sec, Burst=%d", float64(server.rateLimit), server.burstLimit)
	} else {
		server.rateLimit = rate.Inf
		server.appLogger.Info("Rate limiting disabled for /log.")
	}

	server.setupRoutes()
	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	health := handler.NewHealthHandler(handler.HealthDependencies{
		Components: s.deps.Components,
		Routes:     s.deps.Routes,
	})
	s.router.GET("/health", health)
	s.router.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	s.router.GET("/version", handler.VersionHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	logGroup := s.router.Group("/log")
	if s.rateLimit != rate.Inf {
		logGroup.Use(s.rateLimitMiddleware())
	}
	logGroup.POST("", handler.NewLogHandler(handler.LogHandlerDependencies{
		Routes:    s.deps.Routes,
		Config:    s.config,
		AppLogger: s.appLogger,
	}))
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// rateLimitMiddleware creates a Gin middleware for rate limiting based on the client IP.
// The client IP honours server.trusted_proxies.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		s.limiterMu.Lock()
		limiter, exists := s.limiters[ip]
		if !exists {
			limiter = rate.NewLimiter(s.rateLimit, s.burstLimit)
			s.limiters[ip] = limiter
		}
		s.limiterMu.Unlock()

		if !limiter.Allow() {
			s.appLogger.Info("Rate limit exceeded for IP: %s", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// requestIDMiddleware keeps a valid incoming X-Request-ID and assigns a new one otherwise.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		format := "%s %s %d %s ip=%s request_id=%s"
		args := []interface{}{c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP(), c.GetString(requestIDKey)}
		if c.Request.URL.Path == "/health" {
			s.appLogger.Health(format, args...)
			return
		}
		s.appLogger.Debug(format, args...)
	}
}

// recoverPanic answers 500 and reports the panic through the log routes.
func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	requestID := c.GetString(requestIDKey)
	s.appLogger.Error("Panic recovered on %s %s (request_id=%s): %v", c.Request.Method, c.Request.URL.Path, requestID, recovered)
	s.reportPanic(c, requestID, recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "request_id": requestID})
}

func (s *Server) reportPanic(c *gin.Context, requestID string, recovered any) {
	if s.deps.PanicLogger == nil {
		return
	}
	// The panic may come from a log route itself; reporting must not panic again.
	defer func() {
		if r := recover(); r != nil {
			s.appLogger.Error("Reporting panic failed: %v", r)
		}
	}()
	s.deps.PanicLogger.Error(fmt.Sprintf("panic: %v", recovered),
		slog.String(route.CategoryKey, "server.panic"),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("request_id", requestID),
	)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.appLogger.Info("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
