package model

import (
	"time"

	"github.com/google/uuid"
)

// PlatformIdentity links a user to one external platform account. There is
// at most one per (user, platform); disconnecting only clears IsActive.
type PlatformIdentity struct {
	UserID         uuid.UUID
	Platform       string
	PlatformUserID string
	IsActive       bool
	ConnectedAt    time.Time
	LastSyncedAt   *time.Time
}
