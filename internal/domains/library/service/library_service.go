package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/repository"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
)

// Config carries the library settings the service enforces.
type Config struct {
	Statuses        []string
	SearchMinLength int
	SearchLimit     int
	Normalizer      model.Normalizer
}

type libraryService struct {
	repo   repository.Repository
	lookup CatalogLookup
	cfg    Config
	now    func() time.Time
}

func NewLibraryService(repo repository.Repository, lookup CatalogLookup, cfg Config) ServiceInterface {
	if cfg.Normalizer.StripChars == "" {
		cfg.Normalizer = model.DefaultNormalizer
	}
	if cfg.SearchMinLength <= 0 {
		cfg.SearchMinLength = 2
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	return &libraryService{
		repo:   repo,
		lookup: lookup,
		cfg:    cfg,
		now:    time.Now,
	}
}

// =====================================================
// LIST / GET
// =====================================================

func (s *libraryService) ListLibrary(ctx context.Context, userID uuid.UUID, req model.ListLibraryRequest) (*model.LibraryListResponse, error) {
	req.Normalize()

	items, err := s.repo.List(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}

	games := make([]model.LibraryItemResponse, 0, len(items))
	totalMinutes := 0
	for _, item := range items {
		games = append(games, model.ToLibraryItemResponse(item))
		totalMinutes += item.Record.PlaytimeMinutes
	}

	return &model.LibraryListResponse{
		TotalGames:         len(games),
		TotalPlaytimeHours: model.PlaytimeHours(totalMinutes),
		Filters:            req,
		Games:              games,
	}, nil
}

func (s *libraryService) GetLibraryItem(ctx context.Context, userID, recordID uuid.UUID) (*model.LibraryDetailResponse, error) {
	item, err := s.repo.GetItem(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	resp := model.ToLibraryDetailResponse(*item)
	return &resp, nil
}

// =====================================================
// STATUS / REMOVE
// =====================================================

func (s *libraryService) UpdateStatus(ctx context.Context, userID, recordID uuid.UUID, req model.UpdateStatusRequest) (*model.UpdateStatusResponse, error) {
	if err := req.Validate(s.cfg.Statuses); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidStatus, err)
	}

	item, err := s.repo.GetItem(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, userID, recordID, req.Status); err != nil {
		return nil, err
	}

	return &model.UpdateStatusResponse{
		ID:        recordID,
		GameTitle: item.Entry.Title,
		Status:    req.Status,
	}, nil
}

func (s *libraryService) RemoveGame(ctx context.Context, userID, recordID uuid.UUID) error {
	return s.repo.Delete(ctx, userID, recordID)
}

// =====================================================
// MANUAL ADD
// =====================================================

func (s *libraryService) AddManualGame(ctx context.Context, userID uuid.UUID, req model.ManualAddRequest) (*model.LibraryItemResponse, error) {
	// Step 1: Validate request
	if err := req.Validate(s.cfg.Statuses); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Platform = strings.TrimSpace(req.Platform)

	// Step 2: Resolve catalog entry
	entry, err := s.resolveEntry(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 3: One record per entry and platform
	exists, err := s.repo.ExistsRecordForEntry(ctx, userID, entry.ID, req.Platform)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrDuplicateRecord
	}

	// Step 4: Create record
	minutes := req.PlaytimeMinutes()
	record := &model.LibraryRecord{
		UserID:          userID,
		CatalogEntryID:  entry.ID,
		Platform:        req.Platform,
		PlatformGameID:  "manual-" + uuid.NewString(),
		PlaytimeMinutes: minutes,
		Status:          req.Status,
	}
	if minutes > 0 {
		now := s.now().UTC()
		record.LastPlayedAt = &now
	}

	if err := s.repo.InsertLibraryRecords(ctx, []*model.LibraryRecord{record}); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("entry_id", entry.ID.String()).
		Str("platform", record.Platform).
		Msg("Manual game added")

	resp := model.ToLibraryItemResponse(model.LibraryItem{Record: *record, Entry: *entry})
	return &resp, nil
}

// resolveEntry matches by IGDB id, then by title, then asks the metadata
// provider, and finally creates a bare entry.
func (s *libraryService) resolveEntry(ctx context.Context, req model.ManualAddRequest) (*model.CatalogEntry, error) {
	if req.IGDBID != nil {
		entry, err := s.repo.FindEntryByIGDBID(ctx, *req.IGDBID)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, model.ErrCatalogEntryNotFound) {
			return nil, err
		}
	}

	normalized := s.cfg.Normalizer.Normalize(req.Title)
	entry, err := s.repo.FindEntryByTitle(ctx, req.Title, normalized)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, model.ErrCatalogEntryNotFound) {
		return nil, err
	}

	found, err := s.lookup.Lookup(ctx, req.IGDBID, req.Title)
	if err != nil {
		log.Warn().Err(err).Str("title", req.Title).Msg("Metadata lookup failed, creating bare entry")
		found = nil
	}

	candidate := model.CatalogEntry{Title: req.Title, NormalizedTitle: normalized}
	if found != nil {
		candidate = *found
		// The provider's name may normalize onto an entry we already have.
		existing, err := s.repo.FindCatalogEntriesByNormalizedTitles(ctx, []string{candidate.NormalizedTitle})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &existing[0], nil
		}
	}

	if err := s.repo.InsertCatalogEntries(ctx, []*model.CatalogEntry{&candidate}); err != nil {
		return nil, err
	}
	metrics.CatalogEntriesCreated.Inc()
	return &candidate, nil
}

// =====================================================
// STATS / SEARCH
// =====================================================

func (s *libraryService) GetStats(ctx context.Context, userID uuid.UUID) (*model.StatsResponse, error) {
	filter := model.ListLibraryRequest{}
	filter.Normalize()

	items, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	type bucket struct {
		count   int
		minutes int
	}
	buckets := make(map[string]*bucket)
	totalMinutes := 0
	var top *model.LibraryItem

	for i := range items {
		item := &items[i]
		b, ok := buckets[item.Record.Platform]
		if !ok {
			b = &bucket{}
			buckets[item.Record.Platform] = b
		}
		b.count++
		b.minutes += item.Record.PlaytimeMinutes
		totalMinutes += item.Record.PlaytimeMinutes

		if top == nil || item.Record.PlaytimeMinutes > top.Record.PlaytimeMinutes {
			top = item
		}
	}

	platforms := make([]model.PlatformStat, 0, len(buckets))
	for name, b := range buckets {
		platforms = append(platforms, model.PlatformStat{
			Platform:      name,
			Count:         b.count,
			PlaytimeHours: model.PlaytimeHours(b.minutes),
		})
	}
	sort.Slice(platforms, func(i, j int) bool {
		if platforms[i].Count != platforms[j].Count {
			return platforms[i].Count > platforms[j].Count
		}
		return platforms[i].Platform < platforms[j].Platform
	})

	stats := &model.StatsResponse{
		TotalGames:         len(items),
		TotalPlaytimeHours: model.PlaytimeHours(totalMinutes),
		GamesByPlatform:    platforms,
	}
	if top != nil && top.Record.PlaytimeMinutes > 0 {
		stats.MostPlayed = &model.MostPlayed{
			Title:         top.Entry.Title,
			PlaytimeHours: model.PlaytimeHours(top.Record.PlaytimeMinutes),
		}
	}
	return stats, nil
}

func (s *libraryService) SearchCatalog(ctx context.Context, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < s.cfg.SearchMinLength {
		return nil, model.ErrSearchQueryTooShort
	}

	results, err := s.lookup.SearchMany(ctx, query, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMetadataUnavailable, err)
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	return results, nil
}
