package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/repository"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
)

// =====================================================
// SYNC ORCHESTRATOR
// =====================================================

type syncService struct {
	store    repository.SyncStore
	owned    OwnedGamesProvider
	metadata MetadataProvider
	platform string
	now      func() time.Time
}

func NewSyncService(
	store repository.SyncStore,
	owned OwnedGamesProvider,
	metadata MetadataProvider,
	platform string,
) SyncService {
	return &syncService{
		store:    store,
		owned:    owned,
		metadata: metadata,
		platform: platform,
		now:      time.Now,
	}
}

// syncPlan is the set of writes one pass produces.
type syncPlan struct {
	newEntries     []*model.CatalogEntry
	updatedEntries []*model.CatalogEntry
	newRecords     []pendingRecord
	updatedRecords []*model.LibraryRecord
	added          int
	updated        int
}

// pendingRecord keeps the entry pointer so the id assigned on insert can be
// copied onto the record afterwards.
type pendingRecord struct {
	record *model.LibraryRecord
	entry  *model.CatalogEntry
}

func (s *syncService) SyncUserGames(ctx context.Context, userID uuid.UUID, platformUserID string) (int, error) {
	start := time.Now()
	logger := log.With().
		Str("user_id", userID.String()).
		Str("platform", s.platform).
		Str("platform_user_id", platformUserID).
		Logger()

	changed, err := s.sync(ctx, userID, platformUserID)
	metrics.SyncDuration.WithLabelValues(s.platform).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues(s.platform, "error").Inc()
		logger.Error().Err(err).Msg("Library sync failed")
		return 0, err
	}

	result := "success"
	if changed == 0 {
		result = "empty"
	}
	metrics.SyncRuns.WithLabelValues(s.platform, result).Inc()
	logger.Info().
		Int("changed", changed).
		Dur("duration", time.Since(start)).
		Msg("Library sync completed")

	return changed, nil
}

func (s *syncService) sync(ctx context.Context, userID uuid.UUID, platformUserID string) (int, error) {
	// Step 1: Fetch owned games
	games, err := s.owned.ListOwnedGames(ctx, platformUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch owned games: %w", err)
	}
	if len(games) == 0 {
		return 0, nil
	}

	// Step 2: Batch-load what already exists
	catalog, err := s.loadCatalog(ctx, games)
	if err != nil {
		return 0, err
	}
	records, err := s.loadRecords(ctx, userID, games)
	if err != nil {
		return 0, err
	}

	// Step 3: Reconcile in provider order
	plan := s.plan(ctx, userID, games, catalog, records)

	// Step 4: Persist new catalog entries and wire their ids into new records
	if err := s.store.InsertCatalogEntries(ctx, plan.newEntries); err != nil {
		return 0, fmt.Errorf("failed to insert catalog entries: %w", err)
	}
	metrics.CatalogEntriesCreated.Add(float64(len(plan.newEntries)))

	newRecords := make([]*model.LibraryRecord, 0, len(plan.newRecords))
	for _, p := range plan.newRecords {
		p.record.CatalogEntryID = p.entry.ID
		newRecords = append(newRecords, p.record)
	}

	// Step 5: Records and backfills
	if err := s.store.InsertLibraryRecords(ctx, newRecords); err != nil {
		return 0, fmt.Errorf("failed to insert library records: %w", err)
	}
	if err := s.store.UpdateCatalogEntries(ctx, plan.updatedEntries); err != nil {
		return 0, fmt.Errorf("failed to update catalog entries: %w", err)
	}
	if err := s.store.UpdateLibraryRecords(ctx, plan.updatedRecords); err != nil {
		return 0, fmt.Errorf("failed to update library records: %w", err)
	}

	// Step 6: Stamp the connection
	if err := s.store.TouchLastSynced(ctx, userID, s.platform, s.now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to update last synced: %w", err)
	}

	metrics.SyncRecords.WithLabelValues(s.platform, "added").Add(float64(plan.added))
	metrics.SyncRecords.WithLabelValues(s.platform, "updated").Add(float64(plan.updated))

	return plan.added + plan.updated, nil
}

func (s *syncService) loadCatalog(ctx context.Context, games []model.OwnedGame) (map[string]*model.CatalogEntry, error) {
	seen := make(map[string]struct{}, len(games))
	titles := make([]string, 0, len(games))
	for _, g := range games {
		if _, ok := seen[g.Entry.NormalizedTitle]; ok {
			continue
		}
		seen[g.Entry.NormalizedTitle] = struct{}{}
		titles = append(titles, g.Entry.NormalizedTitle)
	}

	entries, err := s.store.FindCatalogEntriesByNormalizedTitles(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog entries: %w", err)
	}

	catalog := make(map[string]*model.CatalogEntry, len(entries))
	for i := range entries {
		e := &entries[i]
		// Duplicates from an earlier race: the first row wins.
		if _, ok := catalog[e.NormalizedTitle]; !ok {
			catalog[e.NormalizedTitle] = e
		}
	}
	return catalog, nil
}

func (s *syncService) loadRecords(ctx context.Context, userID uuid.UUID, games []model.OwnedGame) (map[string]*model.LibraryRecord, error) {
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.PlatformGameID)
	}

	records, err := s.store.FindLibraryRecords(ctx, userID, s.platform, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load library records: %w", err)
	}

	byGameID := make(map[string]*model.LibraryRecord, len(records))
	for i := range records {
		byGameID[records[i].PlatformGameID] = &records[i]
	}
	return byGameID, nil
}

func (s *syncService) plan(
	ctx context.Context,
	userID uuid.UUID,
	games []model.OwnedGame,
	catalog map[string]*model.CatalogEntry,
	records map[string]*model.LibraryRecord,
) syncPlan {
	var plan syncPlan

	stagedEntries := make(map[string]bool)
	backfilled := make(map[uuid.UUID]bool)
	entryQueued := make(map[uuid.UUID]bool)
	stagedRecords := make(map[string]bool)
	recordQueued := make(map[string]bool)

	for _, g := range games {
		key := g.Entry.NormalizedTitle
		entry, exists := catalog[key]

		switch {
		case !exists:
			enriched := s.metadata.Enrich(ctx, g.Entry)
			enriched.NormalizedTitle = key
			entry = &enriched
			catalog[key] = entry
			stagedEntries[key] = true
			plan.newEntries = append(plan.newEntries, entry)

		case stagedEntries[key]:
			// Same title twice in one pass: reuse the staged entry.
			entry.CoverImageURL = g.Entry.CoverImageURL

		default:
			before := *entry
			if entry.NeedsBackfill() && !backfilled[entry.ID] {
				backfilled[entry.ID] = true
				*entry = s.metadata.Enrich(ctx, *entry)
			}
			entry.CoverImageURL = g.Entry.CoverImageURL

			if entryChanged(before, *entry) && !entryQueued[entry.ID] {
				entryQueued[entry.ID] = true
				plan.updatedEntries = append(plan.updatedEntries, entry)
			}
		}

		if rec, ok := records[g.PlatformGameID]; ok {
			changed := rec.PlaytimeMinutes != g.PlaytimeMinutes || !sameTime(rec.LastPlayedAt, g.LastPlayedAt)
			rec.PlaytimeMinutes = g.PlaytimeMinutes
			rec.LastPlayedAt = g.LastPlayedAt
			plan.updated++

			if changed && !stagedRecords[g.PlatformGameID] && !recordQueued[g.PlatformGameID] {
				recordQueued[g.PlatformGameID] = true
				plan.updatedRecords = append(plan.updatedRecords, rec)
			}
			continue
		}

		rec := &model.LibraryRecord{
			UserID:          userID,
			CatalogEntryID:  entry.ID,
			Platform:        s.platform,
			PlatformGameID:  g.PlatformGameID,
			PlaytimeMinutes: g.PlaytimeMinutes,
			LastPlayedAt:    g.LastPlayedAt,
		}
		records[g.PlatformGameID] = rec
		stagedRecords[g.PlatformGameID] = true
		plan.newRecords = append(plan.newRecords, pendingRecord{record: rec, entry: entry})
		plan.added++
	}

	return plan
}

func entryChanged(a, b model.CatalogEntry) bool {
	return a.Description != b.Description ||
		a.Developer != b.Developer ||
		a.Publisher != b.Publisher ||
		a.CoverImageURL != b.CoverImageURL ||
		a.BannerImageURL != b.BannerImageURL ||
		!sameTime(a.ReleaseDate, b.ReleaseDate) ||
		!sameInt64(a.IGDBID, b.IGDBID)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
