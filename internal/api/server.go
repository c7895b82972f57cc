package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apimiddleware "github.com/tsanders-rh/sentinel/internal/api/middleware"
	"github.com/tsanders-rh/sentinel/internal/autoheal"
	"github.com/tsanders-rh/sentinel/internal/backup"
	"github.com/tsanders-rh/sentinel/internal/cost"
	"github.com/tsanders-rh/sentinel/internal/plan"
	"github.com/tsanders-rh/sentinel/internal/tracker"
	"github.com/tsanders-rh/sentinel/pkg/types"
)

const backupsPath = "/api/v1/backups"

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	EnableCORS      bool
	AllowedOrigins  []string
	MaxBodySize     string
	RequestTimeout  time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
		EnableCORS:      true,
		AllowedOrigins:  []string{"http://localhost:3000"}, // admin UI dev server
		MaxBodySize:     "1M",
		RequestTimeout:  30 * time.Second,
	}
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// TenantDirectory resolves a tenant's plan
type TenantDirectory interface {
	GetConfig(ctx context.Context, tenantID string) (*types.TenantConfig, error)
}

// UsageHistory reads persisted daily usage
type UsageHistory interface {
	ListDaily(ctx context.Context, tenantID string, limit int) ([]*types.DailyUsage, error)
}

// SecurityEvents reads the security log
type SecurityEvents interface {
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*types.SecurityEvent, error)
}

// Deps are the components the server exposes. Monitor, Tracker and AutoHeal
// are required; routes backed by a nil optional dependency are not registered.
type Deps struct {
	Monitor  *cost.Monitor
	Tracker  *tracker.Tracker
	Plans    *plan.Registry
	AutoHeal *autoheal.Engine
	Backups  *backup.Service
	Tenants  TenantDirectory
	History  UsageHistory
	Security SecurityEvents
	DB       Pinger
	Logger   *slog.Logger
}

// Server represents the HTTP API server
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	deps   Deps
}

// NewServer creates a new API server
func NewServer(config *ServerConfig, deps Deps) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Plans == nil {
		deps.Plans = plan.DefaultRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Disable Echo's default logger, we use our own
	e.Logger.SetOutput(io.Discard)

	e.Validator = NewValidator()

	s := &Server{
		echo:   e,
		config: config,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware stack
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimiddleware.Logger(s.deps.Logger))

	if s.config.EnableCORS {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  s.config.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentLength},
		}))
	}

	s.echo.Use(middleware.BodyLimit(s.config.MaxBodySize))

	// Backups and restores run to completion and report per-table results.
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Skipper: isBackupRoute,
		Timeout: s.config.RequestTimeout,
	}))
}

func isBackupRoute(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, backupsPath)
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readyCheck)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	costHandler := NewCostHandler(s.deps.Monitor)
	v1.GET("/costs", costHandler.ListToday)
	v1.GET("/costs/:tenant/today", costHandler.Today)
	v1.GET("/costs/:tenant/month", costHandler.Month)
	v1.DELETE("/costs/:tenant", costHandler.Reset)
	v1.POST("/costs/:tenant/events", costHandler.TrackEvent)

	usageHandler := NewUsageHandler(s.deps.Tracker, s.deps.Plans, s.deps.Tenants, s.deps.Logger)
	v1.GET("/usage/:tenant", usageHandler.Get)
	v1.DELETE("/usage/:tenant", usageHandler.Reset)
	v1.POST("/usage/:tenant/calls", usageHandler.TrackCall)
	v1.GET("/quota/:tenant", usageHandler.Quota)

	if s.deps.History != nil {
		v1.GET("/usage/:tenant/daily", NewHistoryHandler(s.deps.History).Daily)
	}

	if s.deps.Security != nil {
		v1.GET("/security/events", NewSecurityHandler(s.deps.Security).List)
	}

	planHandler := NewPlanHandler(s.deps.Plans)
	v1.GET("/plans", planHandler.List)
	v1.GET("/plans/:id", planHandler.Get)

	healHandler := NewAutoHealHandler(s.deps.AutoHeal)
	healGroup := v1.Group("/autoheal")
	healGroup.GET("/actions", healHandler.Actions)
	healGroup.GET("/status", healHandler.Status)
	healGroup.POST("/attempt", healHandler.Attempt)
	healGroup.POST("/degraded/exit", healHandler.ExitDegraded)

	if s.deps.Backups != nil {
		backupHandler := NewBackupHandler(s.deps.Backups)
		backupsGroup := v1.Group("/backups")
		backupsGroup.GET("", backupHandler.List)
		backupsGroup.POST("", backupHandler.Create)
		backupsGroup.GET("/:name", backupHandler.Get)
		backupsGroup.DELETE("/:name", backupHandler.Delete)
		backupsGroup.POST("/:name/restore", backupHandler.Restore)
	}
}

// healthCheck returns basic health status
func (s *Server) healthCheck(c echo.Context) error {
	status := "healthy"
	if s.deps.AutoHeal != nil && s.deps.AutoHeal.IsDegraded() {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readyCheck checks if server is ready to handle requests
func (s *Server) readyCheck(c echo.Context) error {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.DB.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "database unavailable",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.deps.Logger.Info("starting API server", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for testing
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
