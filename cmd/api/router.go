package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared/middleware"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/container"
)

func newSyncLimiter(c *container.Container) *middleware.UserRateLimiter {
	return middleware.NewUserRateLimiter(c.Config.Sync.RateLimit, c.Config.Sync.RateBurst)
}

func SetupRouter(c *container.Container, syncLimiter *middleware.UserRateLimiter) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.ClientURL),
		middleware.Metrics(),
	)

	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c.Config.App.Version, map[string]healthChecker{
			"database": c.DB,
			"redis":    c.Redis,
		}))

		requireAuth := middleware.AuthMiddleware(c.JWTManager)

		setupAuthRoutes(v1, c, requireAuth)
		setupPlatformRoutes(v1, c, requireAuth, syncLimiter)
		setupLibraryRoutes(v1, c, requireAuth)
		setupGameRoutes(v1, c, requireAuth)
	}

	return router
}

// ========================================
// AUTH ROUTES
// ========================================
func setupAuthRoutes(v1 *gin.RouterGroup, c *container.Container, requireAuth gin.HandlerFunc) {
	auth := v1.Group("/auth/steam")
	{
		auth.GET("/login", requireAuth, c.PlatformHandler.SteamLogin)
		// Steam redirects the browser here; the signed state carries the user.
		auth.GET("/callback", c.PlatformHandler.SteamCallback)
	}
}

// ========================================
// PLATFORM ROUTES
// ========================================
func setupPlatformRoutes(v1 *gin.RouterGroup, c *container.Container, requireAuth gin.HandlerFunc, syncLimiter *middleware.UserRateLimiter) {
	platforms := v1.Group("/platforms")
	platforms.Use(requireAuth)
	{
		platforms.POST("/steam/connect", c.PlatformHandler.ConnectSteam)
		platforms.POST("/steam/sync", middleware.RateLimitPerUser(syncLimiter), c.PlatformHandler.SyncSteam)
		platforms.GET("/connections", c.PlatformHandler.ListConnections)
		platforms.DELETE("/:platform", c.PlatformHandler.Disconnect)
	}
}

// ========================================
// LIBRARY ROUTES
// ========================================
func setupLibraryRoutes(v1 *gin.RouterGroup, c *container.Container, requireAuth gin.HandlerFunc) {
	library := v1.Group("/library")
	library.Use(requireAuth)
	{
		library.GET("", c.LibraryHandler.ListLibrary)
		library.GET("/stats", c.LibraryHandler.GetStats)
		library.POST("/manual", c.LibraryHandler.AddManualGame)
		library.GET("/:id", c.LibraryHandler.GetLibraryItem)
		library.PUT("/:id/status", c.LibraryHandler.UpdateStatus)
		library.DELETE("/:id", c.LibraryHandler.RemoveGame)
	}
}

// ========================================
// GAME CATALOG ROUTES
// ========================================
func setupGameRoutes(v1 *gin.RouterGroup, c *container.Container, requireAuth gin.HandlerFunc) {
	games := v1.Group("/games")
	games.Use(requireAuth)
	{
		games.GET("/search", c.LibraryHandler.SearchGames)
	}
}

// ========================================
// HEALTH CHECK
// ========================================

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheckHandler reports 503 when the database is down. Redis only
// backs the metadata cache and the queue, so it degrades without failing.
func healthCheckHandler(version string, checks map[string]healthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   version,
		}

		services := gin.H{}
		for name, checker := range checks {
			status := "ok"
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			if err := checker.HealthCheck(ctx); err != nil {
				status = "error: " + err.Error()
				health["status"] = "degraded"
			}
			cancel()
			services[name] = status
		}
		health["services"] = services

		statusCode := http.StatusOK
		if services["database"] != "ok" {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}
