// Package health exposes HTTP probes for the scheduler process: a detailed
// health report, a liveness check and a database-backed readiness check.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/korjavin/gamenight/pkg/logger"
)

// Pinger is the slice of the store the probes need.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingTimeout bounds the database probe so a stuck store cannot hang the
// health endpoint.
const pingTimeout = 2 * time.Second

// Server serves the health endpoints.
type Server struct {
	store   Pinger
	version string
	started time.Time
	logger  *logger.Logger
	router  *gin.Engine
}

// New creates the health server for a store.
func New(store Pinger, version string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:   store,
		version: version,
		started: time.Now(),
		logger:  logger.New("health"),
		router:  router,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/health/live", s.handleLive)
	router.GET("/health/ready", s.handleReady)
	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the endpoints on addr without blocking.
func (s *Server) Start(addr string) {
	go func() {
		s.logger.Info("Health endpoint listening on %s", addr)
		if err := s.router.Run(addr); err != nil {
			s.logger.Error("Health endpoint stopped: %v", err)
		}
	}()
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	probeStart := time.Now()
	err := s.store.Ping(ctx)
	responseTime := time.Since(probeStart).Milliseconds()

	code := http.StatusOK
	if err != nil {
		s.logger.Warn("Health probe cannot reach the database: %v", err)
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    statusWord(err == nil),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.version,
		"database": gin.H{
			"status":           statusWord(err == nil),
			"response_time_ms": responseTime,
		},
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, "alive")
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Readiness probe cannot reach the database: %v", err)
		c.JSON(http.StatusServiceUnavailable, "unavailable")
		return
	}
	c.JSON(http.StatusOK, "ready")
}

func statusWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
