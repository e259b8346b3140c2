package model

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// REQUEST DTOs
// =====================================================

// Sort keys accepted by ListLibrary.
const (
	SortPlaytime   = "playtime"
	SortLastPlayed = "lastplayed"
	SortTitle      = "title"
	SortAdded      = "added"
)

// ListLibraryRequest holds GET /library query parameters.
type ListLibraryRequest struct {
	Platform  string `form:"platform" json:"platform,omitempty"`
	Status    string `form:"status" json:"status,omitempty"`
	Search    string `form:"search" json:"search,omitempty"`
	SortBy    string `form:"sortBy" json:"sort_by"`
	SortOrder string `form:"sortOrder" json:"sort_order"`
}

// Normalize fills defaults. Unknown sort keys fall back to playtime.
func (r *ListLibraryRequest) Normalize() {
	r.SortBy = strings.ToLower(strings.TrimSpace(r.SortBy))
	switch r.SortBy {
	case SortPlaytime, SortLastPlayed, SortTitle, SortAdded:
	default:
		r.SortBy = SortPlaytime
	}
	if strings.ToLower(r.SortOrder) == "asc" {
		r.SortOrder = "asc"
	} else {
		r.SortOrder = "desc"
	}
	r.Platform = strings.TrimSpace(r.Platform)
	r.Status = strings.TrimSpace(r.Status)
	r.Search = strings.TrimSpace(r.Search)
}

// UpdateStatusRequest is the body of PUT /library/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r UpdateStatusRequest) Validate(statuses []string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(toInterfaces(statuses)...)),
	)
}

// ManualAddRequest is the body of POST /library/manual.
type ManualAddRequest struct {
	Title         string           `json:"title"`
	Platform      string           `json:"platform"`
	IGDBID        *int64           `json:"igdb_id,omitempty"`
	PlaytimeHours *decimal.Decimal `json:"playtime_hours,omitempty"`
	Status        *string          `json:"status,omitempty"`
}

func (r ManualAddRequest) Validate(statuses []string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Platform, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.IGDBID, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&r.PlaytimeHours, validation.By(nonNegativeDecimal)),
		validation.Field(&r.Status, validation.NilOrNotEmpty, validation.In(toInterfaces(statuses)...)),
	)
}

// PlaytimeMinutes converts the requested hours, truncating partial minutes.
func (r ManualAddRequest) PlaytimeMinutes() int {
	if r.PlaytimeHours == nil {
		return 0
	}
	return int(r.PlaytimeHours.Mul(decimal.NewFromInt(60)).IntPart())
}

func nonNegativeDecimal(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		d = *v
	case decimal.Decimal:
		d = v
	default:
		return nil
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// =====================================================
// RESPONSE DTOs
// =====================================================

// PlaytimeHours converts minutes to hours rounded to one decimal place.
func PlaytimeHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(1)
}

type LibraryItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Platform        string          `json:"platform"`
	PlatformGameID  string          `json:"platform_game_id"`
	GameTitle       string          `json:"game_title"`
	CoverImageURL   string          `json:"cover_image_url,omitempty"`
	BannerImageURL  string          `json:"banner_image_url,omitempty"`
	Developer       string          `json:"developer,omitempty"`
	Publisher       string          `json:"publisher,omitempty"`
	PlaytimeMinutes int             `json:"playtime_minutes"`
	PlaytimeHours   decimal.Decimal `json:"playtime_hours"`
	LastPlayedAt    *time.Time      `json:"last_played_at,omitempty"`
	Status          *string         `json:"status,omitempty"`
	AddedAt         time.Time       `json:"added_at"`
}

type LibraryListResponse struct {
	TotalGames         int                   `json:"total_games"`
	TotalPlaytimeHours decimal.Decimal       `json:"total_playtime_hours"`
	Filters            ListLibraryRequest    `json:"filters"`
	Games              []LibraryItemResponse `json:"games"`
}

type CatalogEntryResponse struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Developer      string     `json:"developer,omitempty"`
	Publisher      string     `json:"publisher,omitempty"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	CoverImageURL  string     `json:"cover_image_url,omitempty"`
	BannerImageURL string     `json:"banner_image_url,omitempty"`
	IGDBID         *int64     `json:"igdb_id,omitempty"`
}

type LibraryDetailResponse struct {
	ID              uuid.UUID            `json:"id"`
	Platform        string               `json:"platform"`
	PlatformGameID  string               `json:"platform_game_id"`
	Game            CatalogEntryResponse `json:"game"`
	PlaytimeMinutes int                  `json:"playtime_minutes"`
	PlaytimeHours   decimal.Decimal      `json:"playtime_hours"`
	LastPlayedAt    *time.Time           `json:"last_played_at,omitempty"`
	Status          *string              `json:"status,omitempty"`
	AddedAt         time.Time            `json:"added_at"`
}

type PlatformStat struct {
	Platform      string          `json:"platform"`
	Count         int             `json:"count"`
	PlaytimeHours decimal.Decimal `json:"playtime_hours"`
}

type MostPlayed struct {
	Title         string          `json:"title"`
	PlaytimeHours decimal.Decimal `json:"playtime_hours"`
}

type StatsResponse struct {
	TotalGames         int             `json:"total_games"`
	TotalPlaytimeHours decimal.Decimal `json:"total_playtime_hours"`
	GamesByPlatform    []PlatformStat  `json:"games_by_platform"`
	MostPlayed         *MostPlayed     `json:"most_played,omitempty"`
}

type UpdateStatusResponse struct {
	ID        uuid.UUID `json:"id"`
	GameTitle string    `json:"game_title"`
	Status    string    `json:"status"`
}

// SearchResult is one metadata provider hit for GET /games/search.
type SearchResult struct {
	IGDBID        int64      `json:"igdb_id"`
	Title         string     `json:"title"`
	CoverImageURL string     `json:"cover_image_url,omitempty"`
	ReleaseDate   *time.Time `json:"release_date,omitempty"`
	Developer     string     `json:"developer,omitempty"`
	Publisher     string     `json:"publisher,omitempty"`
}

// =====================================================
// MAPPERS
// =====================================================

func ToLibraryItemResponse(item LibraryItem) LibraryItemResponse {
	return LibraryItemResponse{
		ID:              item.Record.ID,
		Platform:        item.Record.Platform,
		PlatformGameID:  item.Record.PlatformGameID,
		GameTitle:       item.Entry.Title,
		CoverImageURL:   item.Entry.CoverImageURL,
		BannerImageURL:  item.Entry.BannerImageURL,
		Developer:       item.Entry.Developer,
		Publisher:       item.Entry.Publisher,
		PlaytimeMinutes: item.Record.PlaytimeMinutes,
		PlaytimeHours:   PlaytimeHours(item.Record.PlaytimeMinutes),
		LastPlayedAt:    item.Record.LastPlayedAt,
		Status:          item.Record.Status,
		AddedAt:         item.Record.AddedAt,
	}
}

func ToCatalogEntryResponse(e CatalogEntry) CatalogEntryResponse {
	return CatalogEntryResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Developer:      e.Developer,
		Publisher:      e.Publisher,
		ReleaseDate:    e.ReleaseDate,
		CoverImageURL:  e.CoverImageURL,
		BannerImageURL: e.BannerImageURL,
		IGDBID:         e.IGDBID,
	}
}

func ToLibraryDetailResponse(item LibraryItem) LibraryDetailResponse {
	return LibraryDetailResponse{
		ID:              item.Record.ID,
		Platform:        item.Record.Platform,
		PlatformGameID:  item.Record.PlatformGameID,
		Game:            ToCatalogEntryResponse(item.Entry),
		PlaytimeMinutes: item.Record.PlaytimeMinutes,
		PlaytimeHours:   PlaytimeHours(item.Record.PlaytimeMinutes),
		LastPlayedAt:    item.Record.LastPlayedAt,
		Status:          item.Record.Status,
		AddedAt:         item.Record.AddedAt,
	}
}
