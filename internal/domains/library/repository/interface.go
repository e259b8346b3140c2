package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
)

// DedupStrategy controls how concurrent syncs avoid creating two catalog
// entries for one normalized title.
type DedupStrategy string

const (
	// DedupNone inserts plainly and, when the unique normalized_title
	// index rejects a title, retries the whole batch as DedupConflict.
	DedupNone DedupStrategy = "none"
	// DedupConflict relies on the unique normalized_title index. Default.
	DedupConflict DedupStrategy = "conflict"
	// DedupAdvisory serializes inserts per title with pg_advisory_xact_lock.
	DedupAdvisory DedupStrategy = "advisory"
)

// =====================================================
// SYNC STORE
// =====================================================

// SyncStore is the persistence surface of a library sync. Every call is one
// statement, or one transaction when a batch must be split to stay under the
// bind parameter limit.
type SyncStore interface {
	// FindCatalogEntriesByNormalizedTitles loads every entry whose
	// normalized title is in titles.
	FindCatalogEntriesByNormalizedTitles(ctx context.Context, titles []string) ([]model.CatalogEntry, error)

	// FindLibraryRecords loads the user's records on platform whose
	// platform game id is in platformGameIDs.
	FindLibraryRecords(ctx context.Context, userID uuid.UUID, platform string, platformGameIDs []string) ([]model.LibraryRecord, error)

	// InsertCatalogEntries persists entries and writes the stored id back
	// into each one. An entry may receive the id of a row another writer
	// inserted first.
	InsertCatalogEntries(ctx context.Context, entries []*model.CatalogEntry) error

	UpdateCatalogEntries(ctx context.Context, entries []*model.CatalogEntry) error

	InsertLibraryRecords(ctx context.Context, records []*model.LibraryRecord) error

	// UpdateLibraryRecords writes playtime and last played.
	UpdateLibraryRecords(ctx context.Context, records []*model.LibraryRecord) error

	TouchLastSynced(ctx context.Context, userID uuid.UUID, platform string, at time.Time) error
}

// =====================================================
// LIBRARY REPOSITORY
// =====================================================

type Repository interface {
	SyncStore

	// List returns the user's library joined with catalog entries,
	// filtered and ordered by filter.
	List(ctx context.Context, userID uuid.UUID, filter model.ListLibraryRequest) ([]model.LibraryItem, error)

	// GetItem returns one record owned by userID.
	GetItem(ctx context.Context, userID, recordID uuid.UUID) (*model.LibraryItem, error)

	UpdateStatus(ctx context.Context, userID, recordID uuid.UUID, status string) error

	Delete(ctx context.Context, userID, recordID uuid.UUID) error

	// FindEntryByIGDBID returns model.ErrCatalogEntryNotFound on a miss.
	FindEntryByIGDBID(ctx context.Context, igdbID int64) (*model.CatalogEntry, error)

	// FindEntryByTitle matches a case-insensitive display title or the
	// normalized title.
	FindEntryByTitle(ctx context.Context, title, normalized string) (*model.CatalogEntry, error)

	ExistsRecordForEntry(ctx context.Context, userID, entryID uuid.UUID, platform string) (bool, error)
}
