package model

import (
	"errors"
	"net/http"
)

// =====================================================
// SENTINEL ERRORS
// =====================================================

var (
	ErrRecordNotFound       = errors.New("game not found in your library")
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")
	ErrDuplicateRecord      = errors.New("you already have this game in your library on this platform")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrSearchQueryTooShort  = errors.New("search query is too short")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMetadataUnavailable  = errors.New("metadata provider unavailable")
)

// ErrorCode maps a library error to (HTTP status, error code).
func ErrorCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrCatalogEntryNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrDuplicateRecord):
		return http.StatusConflict, "DUPLICATE_GAME"
	case errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest, "INVALID_STATUS"
	case errors.Is(err, ErrSearchQueryTooShort), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, ErrMetadataUnavailable):
		return http.StatusBadGateway, "METADATA_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
