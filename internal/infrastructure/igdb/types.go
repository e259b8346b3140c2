package igdb

import (
	"strings"
	"time"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
)

// Game is the subset of the IGDB /games resource we request.
type Game struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
	Cover             *Image            `json:"cover,omitempty"`
	Artworks          []Image           `json:"artworks,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	Genres            []Genre           `json:"genres,omitempty"`
}

type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type InvolvedCompany struct {
	ID        int64   `json:"id"`
	Company   Company `json:"company"`
	Developer bool    `json:"developer"`
	Publisher bool    `json:"publisher"`
}

type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Developer returns the first involved company flagged as developer.
func (g *Game) Developer() string {
	for _, ic := range g.InvolvedCompanies {
		if ic.Developer {
			return ic.Company.Name
		}
	}
	return ""
}

// Publisher returns the first involved company flagged as publisher.
func (g *Game) Publisher() string {
	for _, ic := range g.InvolvedCompanies {
		if ic.Publisher {
			return ic.Company.Name
		}
	}
	return ""
}

// ReleaseDate converts first_release_date (epoch seconds) to a UTC time.
func (g *Game) ReleaseDate() *time.Time {
	if g.FirstReleaseDate == 0 {
		return nil
	}
	t := time.Unix(g.FirstReleaseDate, 0).UTC()
	return &t
}

// CoverURL upgrades the thumbnail to the big cover size.
func (g *Game) CoverURL() string {
	if g.Cover == nil || g.Cover.URL == "" {
		return ""
	}
	return imageURL(g.Cover.URL, "t_cover_big")
}

// BannerURL uses the first artwork, falling back to the first screenshot.
func (g *Game) BannerURL() string {
	if len(g.Artworks) > 0 && g.Artworks[0].URL != "" {
		return imageURL(g.Artworks[0].URL, "t_screenshot_huge")
	}
	if len(g.Screenshots) > 0 && g.Screenshots[0].URL != "" {
		return imageURL(g.Screenshots[0].URL, "t_screenshot_huge")
	}
	return ""
}

// IGDB returns protocol-relative URLs ("//images.igdb.com/...").
func imageURL(raw, size string) string {
	u := strings.ReplaceAll(raw, "t_thumb", size)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// Apply copies provider metadata onto entry. Cover and banner are only filled
// when the entry has none.
func (g *Game) Apply(entry model.CatalogEntry) model.CatalogEntry {
	entry.Description = g.Summary
	if rd := g.ReleaseDate(); rd != nil {
		entry.ReleaseDate = rd
	}
	if dev := g.Developer(); dev != "" {
		entry.Developer = dev
	}
	if pub := g.Publisher(); pub != "" {
		entry.Publisher = pub
	}
	id := g.ID
	entry.IGDBID = &id

	if entry.CoverImageURL == "" {
		entry.CoverImageURL = g.CoverURL()
	}
	if entry.BannerImageURL == "" {
		entry.BannerImageURL = g.BannerURL()
	}
	return entry
}

// ToCatalogEntry builds a fresh catalog entry from the game.
func (g *Game) ToCatalogEntry(n model.Normalizer) model.CatalogEntry {
	entry := model.CatalogEntry{
		Title:           g.Name,
		NormalizedTitle: n.Normalize(g.Name),
	}
	return g.Apply(entry)
}

// ToSearchResult maps the game to the search endpoint shape.
func (g *Game) ToSearchResult() model.SearchResult {
	return model.SearchResult{
		IGDBID:        g.ID,
		Title:         g.Name,
		CoverImageURL: g.CoverURL(),
		ReleaseDate:   g.ReleaseDate(),
		Developer:     g.Developer(),
		Publisher:     g.Publisher(),
	}
}
