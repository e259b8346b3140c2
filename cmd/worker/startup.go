package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/container"
)

type startupCheck struct {
	name string
	fn   func(ctx context.Context) error
}

// startServices runs the startup checks and opens the health endpoint.
func startServices(c *container.Container) error {
	log.Info().
		Str("service", c.Config.App.Name).
		Str("environment", c.Config.App.Environment).
		Msg("Worker starting")

	checks := []startupCheck{
		// asynq needs Redis; unlike the API there is nothing to do without it.
		{name: "Redis Connection", fn: c.Redis.HealthCheck},
		{name: "Database Connection", fn: c.DB.HealthCheck},
	}
	if err := runChecks(checks); err != nil {
		return err
	}

	go startHealthCheckServer(c)
	return nil
}

func runChecks(checks []startupCheck) error {
	for _, check := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := check.fn(ctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("check", check.name).Msg("Startup check failed")
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Str("check", check.name).Msg("Startup check OK")
	}
	return nil
}

func healthRouter(c *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "UP", "service": "gaming-library-worker"})
	})
	r.GET("/ready", func(ctx *gin.Context) {
		if err := c.Redis.HealthCheck(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "READY"})
	})
	r.GET("/metrics", metrics.Handler())
	return r
}

func startHealthCheckServer(c *container.Container) {
	addr := ":" + c.Config.Worker.HealthPort
	log.Info().Str("addr", addr).Msg("[Health] Starting health check server")
	if err := http.ListenAndServe(addr, healthRouter(c)); err != nil {
		log.Error().Err(err).Msg("[Health] Failed to start")
	}
}
