package model

import (
	"errors"
	"net/http"
)

var (
	ErrConnectionNotFound = errors.New("platform connection not found")
	ErrNotConnected       = errors.New("no steam account connected, please connect a steam account first")
	ErrInvalidSteamID     = errors.New("invalid steam id or profile name")
	ErrProfileNotFound    = errors.New("steam profile not found")
	ErrInvalidState       = errors.New("invalid or expired sign-in state")
	ErrSteamRejected      = errors.New("steam did not confirm the sign-in")
	ErrSyncFailed         = errors.New("an error occurred while syncing your steam library")
	ErrSteamUnavailable   = errors.New("steam is unavailable, try again later")
)

// ErrorCode maps a platform error to (HTTP status, error code).
func ErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrConnectionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrNotConnected):
		return http.StatusBadRequest, "NOT_CONNECTED"
	case errors.Is(err, ErrInvalidSteamID):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound, "PROFILE_NOT_FOUND"
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrSteamRejected):
		return http.StatusUnauthorized, "STEAM_AUTH_FAILED"
	case errors.Is(err, ErrSteamUnavailable):
		return http.StatusBadGateway, "STEAM_UNAVAILABLE"
	case errors.Is(err, ErrSyncFailed):
		return http.StatusInternalServerError, "SYNC_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
