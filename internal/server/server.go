// Package server exposes the HTTP observability surface of the
// daemon: health, JSON stats, Prometheus metrics, and recent journal
// events. It serves operators and dashboards, not the frame path;
// bundles never cross this boundary.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/visionstack/multicam/internal/aggregator"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
	"github.com/visionstack/multicam/internal/journal"
)

// Config configures the HTTP server.
type Config struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server wraps the gin engine and the http server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *logging.Logger

	agg     *aggregator.Aggregator
	journal *journal.Journal // optional
	started time.Time
}

// New creates the server and registers all routes. The journal may be
// nil; its routes then report 404.
func New(cfg Config, agg *aggregator.Aggregator, jnl *journal.Journal, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	s := &Server{
		engine:  engine,
		logger:  logger,
		agg:     agg,
		journal: jnl,
		started: time.Now(),
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	engine.GET("/health", s.health)
	engine.GET("/stats", s.stats)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		agg.Metrics().Registry(),
		promhttp.HandlerOpts{},
	)))
	engine.GET("/events", s.events)

	return s
}

// Handler returns the underlying HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  time.Since(s.started).String(),
		"cameras": s.agg.NumCameras(),
	})
}

func (s *Server) stats(c *gin.Context) {
	snap := s.agg.Metrics().GetSnapshot()
	resp := gin.H{
		"cameras":   s.agg.NumCameras(),
		"pending":   s.agg.PendingCount(),
		"completed": s.agg.CompletedCount(),
		"counters":  snap,
	}
	if s.journal != nil {
		resp["journal_dropped"] = s.journal.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) events(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in [1, 1000]"})
			return
		}
		limit = n
	}

	events, err := s.journal.RecentEvents(limit)
	if err != nil {
		s.logger.Error("journal query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// requestLogger logs each request at debug level.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
