package service

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
)

// SteamAccounts is the slice of the Steam client the platform domain uses.
type SteamAccounts interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	LoginURL(returnTo, realm string) string
	VerifyAssertion(ctx context.Context, query url.Values, callbackURL string) (string, error)
}

// StateSigner carries the user id through the Steam sign-in redirect.
type StateSigner interface {
	GenerateStateToken(userID string, ttl time.Duration) (string, error)
	ValidateStateToken(token string) (string, error)
}

type ServiceInterface interface {
	ConnectSteam(ctx context.Context, userID uuid.UUID, req model.ConnectSteamRequest) (*model.ConnectResponse, error)
	ListConnections(ctx context.Context, userID uuid.UUID) ([]model.ConnectionResponse, error)
	Disconnect(ctx context.Context, userID uuid.UUID, platform string) error

	// SyncNow runs a sync inline; QueueSync hands it to the worker.
	SyncNow(ctx context.Context, userID uuid.UUID) (*model.SyncResponse, error)
	QueueSync(ctx context.Context, userID uuid.UUID) (*model.SyncQueuedResponse, error)

	SteamLoginURL(userID uuid.UUID) (*model.LoginURLResponse, error)
	CompleteSteamLogin(ctx context.Context, state string, query url.Values) (*model.ConnectResponse, error)
}
