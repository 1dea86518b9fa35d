// Package http provides the API server, its middleware stack, and the
// standalone metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/zeroapp/credvault/internal/metrics"
	vaultHTTP "github.com/zeroapp/credvault/internal/vault/http"
)

// Server is the API server: a gin router behind an http.Server with
// sane timeouts.
type Server struct {
	db     *sql.DB
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates the API server. Call SetupRouter before Start to register
// the vault routes; without it only health and readiness respond.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig carries the handlers and middleware settings for SetupRouter.
type RouterConfig struct {
	CredentialHandler *vaultHTTP.CredentialHandler
	AccessLogHandler  *vaultHTTP.AccessLogHandler
	PlatformHandler   *vaultHTTP.PlatformHandler
	OAuthHandler      *vaultHTTP.OAuthHandler

	// MeterProvider enables per-route HTTP metrics when non-nil.
	MeterProvider    metric.MeterProvider
	MetricsNamespace string

	CORSEnabled      bool
	CORSAllowOrigins string

	// RateLimitRPS enables per-IP rate limiting when positive.
	RateLimitRPS   float64
	RateLimitBurst int
}

// SetupRouter builds the gin router and registers all vault routes.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitRPS > 0 {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}

	if cfg.CredentialHandler != nil {
		users := v1.Group("/users/:user_id")
		users.PUT("/credentials/:platform", cfg.CredentialHandler.StoreHandler)
		users.GET("/credentials/:platform", cfg.CredentialHandler.GetHandler)
		users.DELETE("/credentials/:platform", cfg.CredentialHandler.DeleteHandler)
		users.GET("/credentials", cfg.CredentialHandler.ListHandler)
		users.POST("/rotate-key", cfg.CredentialHandler.RotateHandler)

		if cfg.AccessLogHandler != nil {
			users.GET("/access-logs", cfg.AccessLogHandler.ListHandler)
		}
		if cfg.OAuthHandler != nil {
			users.POST("/oauth/:platform/initiate", cfg.OAuthHandler.InitiateHandler)
		}
	}

	if cfg.OAuthHandler != nil {
		v1.POST("/oauth/callback", cfg.OAuthHandler.CompleteHandler)
	}
	if cfg.PlatformHandler != nil {
		v1.GET("/platforms", cfg.PlatformHandler.ListHandler)
		v1.GET("/platforms/:platform", cfg.PlatformHandler.GetHandler)
	}

	s.router = router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can do useful work, which means
// the database must answer a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// GetHandler returns the router as an http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	if s.router == nil {
		s.SetupRouter(RouterConfig{})
	}
	return s.router
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		s.SetupRouter(RouterConfig{})
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
