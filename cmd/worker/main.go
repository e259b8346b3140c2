package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/pkg/container"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/logger"
)

func main() {
	envErr := godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		log.Warn().Msg("No .env file found, using system environment variables")
	}

	// Initialize container
	c, err := container.NewContainer()
	if err != nil {
		log.Fatal().Err(err).Msg("[Container] Failed to initialize")
	}
	defer c.Cleanup()

	// Initialize handlers
	handlers := initializeHandlers(c)

	// Perform health checks before taking work
	if err := startServices(c); err != nil {
		log.Fatal().Err(err).Msg("[Startup] Health check failed")
	}

	// Setup Asynq server
	srv := setupAsynqServer(c.Config, handlers)

	// Wait for shutdown signal
	waitForShutdown(srv)
}

func waitForShutdown(srv *asynqServer) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("[Shutdown] Gracefully stopping...")
	srv.Shutdown()
	log.Info().Msg("[Shutdown] Stopped")
}
