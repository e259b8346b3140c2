package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// steamIDPattern matches a 64-bit SteamID in decimal form.
var steamIDPattern = regexp.MustCompile(`^\d{17}$`)

// IsSteamID reports whether s is already a 64-bit id rather than a handle.
func IsSteamID(s string) bool {
	return steamIDPattern.MatchString(s)
}

// =====================================================
// REQUEST DTOs
// =====================================================

// ConnectSteamRequest accepts either a 64-bit id or a vanity profile name.
type ConnectSteamRequest struct {
	SteamID string `json:"steam_id"`
}

func (r ConnectSteamRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SteamID, validation.Required, validation.Length(2, 64)),
	)
}

// =====================================================
// RESPONSE DTOs
// =====================================================

type ConnectionResponse struct {
	Platform       string     `json:"platform"`
	PlatformUserID string     `json:"platform_user_id"`
	ConnectedAt    time.Time  `json:"connected_at"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}

type ConnectResponse struct {
	Connection  ConnectionResponse `json:"connection"`
	GamesSynced int                `json:"games_synced"`
	SyncFailed  bool               `json:"sync_failed"`
}

type SyncResponse struct {
	GamesSynced  int       `json:"games_synced"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

type SyncQueuedResponse struct {
	TaskID string `json:"task_id"`
}

type LoginURLResponse struct {
	RedirectURL string `json:"redirect_url"`
}

func ToConnectionResponse(p PlatformIdentity) ConnectionResponse {
	return ConnectionResponse{
		Platform:       p.Platform,
		PlatformUserID: p.PlatformUserID,
		ConnectedAt:    p.ConnectedAt,
		LastSyncedAt:   p.LastSyncedAt,
	}
}
