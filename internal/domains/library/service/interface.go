package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
)

// =====================================================
// COLLABORATORS
// =====================================================

// OwnedGamesProvider lists the titles a platform account owns.
type OwnedGamesProvider interface {
	ListOwnedGames(ctx context.Context, platformUserID string) ([]model.OwnedGame, error)
}

// MetadataProvider fills catalog metadata. Enrich never fails; on any
// problem it returns the entry unchanged.
type MetadataProvider interface {
	Enrich(ctx context.Context, entry model.CatalogEntry) model.CatalogEntry
}

// CatalogLookup resolves manual additions and free-text searches.
type CatalogLookup interface {
	// Lookup returns (nil, nil) when nothing matches.
	Lookup(ctx context.Context, igdbID *int64, title string) (*model.CatalogEntry, error)
	SearchMany(ctx context.Context, query string, limit int) ([]model.SearchResult, error)
}

// =====================================================
// SERVICES
// =====================================================

type SyncService interface {
	// SyncUserGames reconciles the platform account's owned games into the
	// user's library and returns added + updated record count.
	SyncUserGames(ctx context.Context, userID uuid.UUID, platformUserID string) (int, error)
}

type ServiceInterface interface {
	ListLibrary(ctx context.Context, userID uuid.UUID, req model.ListLibraryRequest) (*model.LibraryListResponse, error)
	GetLibraryItem(ctx context.Context, userID, recordID uuid.UUID) (*model.LibraryDetailResponse, error)
	UpdateStatus(ctx context.Context, userID, recordID uuid.UUID, req model.UpdateStatusRequest) (*model.UpdateStatusResponse, error)
	RemoveGame(ctx context.Context, userID, recordID uuid.UUID) error

	// AddManualGame adds a game that no connected platform reports.
	AddManualGame(ctx context.Context, userID uuid.UUID, req model.ManualAddRequest) (*model.LibraryItemResponse, error)

	GetStats(ctx context.Context, userID uuid.UUID) (*model.StatsResponse, error)
	SearchCatalog(ctx context.Context, query string) ([]model.SearchResult, error)
}
