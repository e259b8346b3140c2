package model

import (
	"time"

	"github.com/google/uuid"
)

// =====================================================
// CATALOG ENTRY
// =====================================================

// CatalogEntry is a game in the shared catalog. One per normalized title in
// steady state; many users' library records point at it.
type CatalogEntry struct {
	ID              uuid.UUID  `json:"id"`
	NormalizedTitle string     `json:"normalized_title"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Developer       string     `json:"developer,omitempty"`
	Publisher       string     `json:"publisher,omitempty"`
	ReleaseDate     *time.Time `json:"release_date,omitempty"`
	CoverImageURL   string     `json:"cover_image_url,omitempty"`
	BannerImageURL  string     `json:"banner_image_url,omitempty"`
	IGDBID          *int64     `json:"igdb_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NeedsBackfill reports whether provider metadata is incomplete.
func (e *CatalogEntry) NeedsBackfill() bool {
	return e.Developer == "" || e.Publisher == "" || e.Description == ""
}

// =====================================================
// LIBRARY RECORD
// =====================================================

// LibraryRecord is one user's ownership of a catalog entry on one platform.
// Unique on (UserID, Platform, PlatformGameID).
type LibraryRecord struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	CatalogEntryID  uuid.UUID  `json:"catalog_entry_id"`
	Platform        string     `json:"platform"`
	PlatformGameID  string     `json:"platform_game_id"`
	PlaytimeMinutes int        `json:"playtime_minutes"`
	LastPlayedAt    *time.Time `json:"last_played_at,omitempty"`
	Status          *string    `json:"status,omitempty"`
	AddedAt         time.Time  `json:"added_at"`
}

// LibraryItem is a record joined with its catalog entry.
type LibraryItem struct {
	Record LibraryRecord
	Entry  CatalogEntry
}

// =====================================================
// OWNED GAME (provider draft)
// =====================================================

// OwnedGame is what the owned-games provider reports for one title, with a
// draft catalog entry that has not been matched or persisted.
type OwnedGame struct {
	PlatformGameID  string
	PlaytimeMinutes int
	LastPlayedAt    *time.Time
	Entry           CatalogEntry
}
