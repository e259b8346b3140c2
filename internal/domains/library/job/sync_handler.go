package job

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/service"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared"
)

// SyncHandler runs queued library syncs for the one platform the sync
// service is bound to.
type SyncHandler struct {
	sync     service.SyncService
	platform string
}

func NewSyncHandler(sync service.SyncService, platform string) *SyncHandler {
	return &SyncHandler{sync: sync, platform: platform}
}

// ProcessTask parses the payload and runs one sync pass. Malformed payloads
// and payloads for another platform are not retried.
func (h *SyncHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.LibrarySyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("LibrarySync: invalid payload")
		return fmt.Errorf("unmarshal library sync payload: %w: %w", err, asynq.SkipRetry)
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil || payload.PlatformUserID == "" {
		log.Error().Str("user_id", payload.UserID).Msg("LibrarySync: missing user or platform id")
		return fmt.Errorf("library sync payload incomplete: %w", asynq.SkipRetry)
	}

	if !strings.EqualFold(payload.Platform, h.platform) {
		log.Error().
			Str("user_id", payload.UserID).
			Str("platform", payload.Platform).
			Msg("LibrarySync: unsupported platform")
		return fmt.Errorf("library sync for platform %q: %w", payload.Platform, asynq.SkipRetry)
	}

	changed, err := h.sync.SyncUserGames(ctx, userID, payload.PlatformUserID)
	if err != nil {
		return err
	}

	log.Info().
		Str("user_id", payload.UserID).
		Str("platform", payload.Platform).
		Int("games_synced", changed).
		Msg("LibrarySync: task done")
	return nil
}
