package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
)

// =====================================================
// FUNC-FIELD FAKES
// =====================================================

type fakeOwned struct {
	listFn func(ctx context.Context, platformUserID string) ([]model.OwnedGame, error)
}

func (f *fakeOwned) ListOwnedGames(ctx context.Context, platformUserID string) ([]model.OwnedGame, error) {
	return f.listFn(ctx, platformUserID)
}

type fakeMetadata struct {
	mu       sync.Mutex
	calls    []string
	enrichFn func(entry model.CatalogEntry) model.CatalogEntry
}

func (f *fakeMetadata) Enrich(_ context.Context, entry model.CatalogEntry) model.CatalogEntry {
	f.mu.Lock()
	f.calls = append(f.calls, entry.Title)
	f.mu.Unlock()
	if f.enrichFn == nil {
		return entry
	}
	return f.enrichFn(entry)
}

type fakeLookup struct {
	lookupFn func(ctx context.Context, igdbID *int64, title string) (*model.CatalogEntry, error)
	searchFn func(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}

func (f *fakeLookup) Lookup(ctx context.Context, igdbID *int64, title string) (*model.CatalogEntry, error) {
	if f.lookupFn == nil {
		return nil, nil
	}
	return f.lookupFn(ctx, igdbID, title)
}

func (f *fakeLookup) SearchMany(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(ctx, query, limit)
}

// =====================================================
// IN-MEMORY STORE
// =====================================================

type touch struct {
	userID   uuid.UUID
	platform string
	at       time.Time
}

type memStore struct {
	mu      sync.Mutex
	entries []model.CatalogEntry
	records []model.LibraryRecord
	touches []touch

	// writes counts write calls that carried data.
	writes map[string]int
	// failOn makes the named method return failErr.
	failOn  string
	failErr error
}

func newMemStore() *memStore {
	return &memStore{writes: make(map[string]int)}
}

func (m *memStore) fail(method string) error {
	if m.failOn == method {
		return m.failErr
	}
	return nil
}

func (m *memStore) FindCatalogEntriesByNormalizedTitles(_ context.Context, titles []string) ([]model.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindCatalogEntriesByNormalizedTitles"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(titles))
	for _, t := range titles {
		want[t] = true
	}
	var out []model.CatalogEntry
	for _, e := range m.entries {
		if want[e.NormalizedTitle] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) FindLibraryRecords(_ context.Context, userID uuid.UUID, platform string, ids []string) ([]model.LibraryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("FindLibraryRecords"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.LibraryRecord
	for _, r := range m.records {
		if r.UserID == userID && r.Platform == platform && want[r.PlatformGameID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) InsertCatalogEntries(_ context.Context, entries []*model.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	if err := m.fail("InsertCatalogEntries"); err != nil {
		return err
	}
	m.writes["InsertCatalogEntries"]++
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CreatedAt = time.Now().UTC()
		m.entries = append(m.entries, *e)
	}
	return nil
}

func (m *memStore) UpdateCatalogEntries(_ context.Context, entries []*model.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	if err := m.fail("UpdateCatalogEntries"); err != nil {
		return err
	}
	m.writes["UpdateCatalogEntries"]++
	for _, e := range entries {
		for i := range m.entries {
			if m.entries[i].ID == e.ID {
				m.entries[i] = *e
			}
		}
	}
	return nil
}

func (m *memStore) InsertLibraryRecords(_ context.Context, records []*model.LibraryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(records) == 0 {
		return nil
	}
	if err := m.fail("InsertLibraryRecords"); err != nil {
		return err
	}
	for _, r := range records {
		for _, existing := range m.records {
			if existing.UserID == r.UserID && existing.Platform == r.Platform && existing.PlatformGameID == r.PlatformGameID {
				return model.ErrDuplicateRecord
			}
		}
	}
	m.writes["InsertLibraryRecords"]++
	for _, r := range records {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		r.AddedAt = time.Now().UTC()
		m.records = append(m.records, *r)
	}
	return nil
}

func (m *memStore) UpdateLibraryRecords(_ context.Context, records []*model.LibraryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(records) == 0 {
		return nil
	}
	if err := m.fail("UpdateLibraryRecords"); err != nil {
		return err
	}
	m.writes["UpdateLibraryRecords"]++
	for _, r := range records {
		for i := range m.records {
			if m.records[i].ID == r.ID {
				m.records[i].PlaytimeMinutes = r.PlaytimeMinutes
				m.records[i].LastPlayedAt = r.LastPlayedAt
			}
		}
	}
	return nil
}

func (m *memStore) TouchLastSynced(_ context.Context, userID uuid.UUID, platform string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("TouchLastSynced"); err != nil {
		return err
	}
	m.writes["TouchLastSynced"]++
	m.touches = append(m.touches, touch{userID: userID, platform: platform, at: at})
	return nil
}

func (m *memStore) entryByID(id uuid.UUID) (model.CatalogEntry, bool) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.CatalogEntry{}, false
}

func (m *memStore) List(_ context.Context, userID uuid.UUID, filter model.ListLibraryRequest) ([]model.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("List"); err != nil {
		return nil, err
	}
	var items []model.LibraryItem
	for _, r := range m.records {
		if r.UserID != userID {
			continue
		}
		if filter.Platform != "" && !strings.EqualFold(r.Platform, filter.Platform) {
			continue
		}
		e, _ := m.entryByID(r.CatalogEntryID)
		items = append(items, model.LibraryItem{Record: r, Entry: e})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Record.PlaytimeMinutes > items[j].Record.PlaytimeMinutes
	})
	return items, nil
}

func (m *memStore) GetItem(_ context.Context, userID, recordID uuid.UUID) (*model.LibraryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == recordID && r.UserID == userID {
			e, _ := m.entryByID(r.CatalogEntryID)
			return &model.LibraryItem{Record: r, Entry: e}, nil
		}
	}
	return nil, model.ErrRecordNotFound
}

func (m *memStore) UpdateStatus(_ context.Context, userID, recordID uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID && m.records[i].UserID == userID {
			s := status
			m.records[i].Status = &s
			return nil
		}
	}
	return model.ErrRecordNotFound
}

func (m *memStore) Delete(_ context.Context, userID, recordID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID && m.records[i].UserID == userID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return model.ErrRecordNotFound
}

func (m *memStore) FindEntryByIGDBID(_ context.Context, igdbID int64) (*model.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.IGDBID != nil && *e.IGDBID == igdbID {
			found := e
			return &found, nil
		}
	}
	return nil, model.ErrCatalogEntryNotFound
}

func (m *memStore) FindEntryByTitle(_ context.Context, title, normalized string) (*model.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if strings.EqualFold(e.Title, title) || e.NormalizedTitle == normalized {
			found := e
			return &found, nil
		}
	}
	return nil, model.ErrCatalogEntryNotFound
}

func (m *memStore) ExistsRecordForEntry(_ context.Context, userID, entryID uuid.UUID, platform string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.CatalogEntryID == entryID && strings.EqualFold(r.Platform, platform) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) totalWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.writes {
		n += v
	}
	return n
}
