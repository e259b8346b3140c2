package main

import (
	"github.com/hibiken/asynq"

	libraryJob "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/job"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	librarySync *libraryJob.SyncHandler
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		librarySync: c.SyncJob,
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeLibrarySync, h.librarySync.ProcessTask)
}
