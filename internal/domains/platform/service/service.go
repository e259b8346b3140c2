package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	librarySvc "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/service"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/repository"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/queue"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/steam"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared"
)

const callbackPath = "/api/v1/auth/steam/callback"

type Config struct {
	Platform  string // catalog name of the Steam platform, e.g. "Steam"
	PublicURL string // externally visible base URL of this API
	StateTTL  time.Duration
}

type platformService struct {
	repo     repository.Repository
	steam    SteamAccounts
	sync     librarySvc.SyncService
	enqueuer queue.Enqueuer
	signer   StateSigner
	cfg      Config
	now      func() time.Time
}

func NewPlatformService(
	repo repository.Repository,
	steamAccounts SteamAccounts,
	sync librarySvc.SyncService,
	enqueuer queue.Enqueuer,
	signer StateSigner,
	cfg Config,
) ServiceInterface {
	if cfg.Platform == "" {
		cfg.Platform = "Steam"
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &platformService{
		repo:     repo,
		steam:    steamAccounts,
		sync:     sync,
		enqueuer: enqueuer,
		signer:   signer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// =====================================================
// CONNECTIONS
// =====================================================

func (s *platformService) ConnectSteam(ctx context.Context, userID uuid.UUID, req model.ConnectSteamRequest) (*model.ConnectResponse, error) {
	// Step 1: Validate request
	req.SteamID = strings.TrimSpace(req.SteamID)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidSteamID, err)
	}

	// Step 2: Resolve a vanity handle to the 64-bit id
	steamID := req.SteamID
	if !model.IsSteamID(steamID) {
		resolved, err := s.steam.ResolveHandle(ctx, steamID)
		if err != nil {
			return nil, mapSteamError(err)
		}
		steamID = resolved
	}

	// Step 3: Save the connection and pull the library
	return s.connect(ctx, userID, steamID)
}

// connect upserts the identity and runs the first sync. A failed sync does
// not undo the connection.
func (s *platformService) connect(ctx context.Context, userID uuid.UUID, steamID string) (*model.ConnectResponse, error) {
	identity := &model.PlatformIdentity{
		UserID:         userID,
		Platform:       s.cfg.Platform,
		PlatformUserID: steamID,
		ConnectedAt:    s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, identity); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("steam_id", steamID).
		Msg("Steam account connected")

	resp := &model.ConnectResponse{}
	changed, err := s.sync.SyncUserGames(ctx, userID, steamID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Auto-sync failed, connection kept")
		resp.SyncFailed = true
	} else {
		synced := s.now().UTC()
		identity.LastSyncedAt = &synced
		resp.GamesSynced = changed
	}

	resp.Connection = model.ToConnectionResponse(*identity)
	return resp, nil
}

func (s *platformService) ListConnections(ctx context.Context, userID uuid.UUID) ([]model.ConnectionResponse, error) {
	identities, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConnectionResponse, 0, len(identities))
	for _, p := range identities {
		out = append(out, model.ToConnectionResponse(p))
	}
	return out, nil
}

func (s *platformService) Disconnect(ctx context.Context, userID uuid.UUID, platform string) error {
	if err := s.repo.Deactivate(ctx, userID, strings.TrimSpace(platform)); err != nil {
		return err
	}

	log.Info().Str("user_id", userID.String()).Str("platform", platform).Msg("Platform disconnected")
	return nil
}

// =====================================================
// SYNC
// =====================================================

func (s *platformService) activeIdentity(ctx context.Context, userID uuid.UUID) (*model.PlatformIdentity, error) {
	identity, err := s.repo.GetActive(ctx, userID, s.cfg.Platform)
	if errors.Is(err, model.ErrConnectionNotFound) {
		return nil, model.ErrNotConnected
	}
	return identity, err
}

func (s *platformService) SyncNow(ctx context.Context, userID uuid.UUID) (*model.SyncResponse, error) {
	identity, err := s.activeIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed, err := s.sync.SyncUserGames(ctx, userID, identity.PlatformUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSyncFailed, err)
	}

	return &model.SyncResponse{
		GamesSynced:  changed,
		LastSyncedAt: s.now().UTC(),
	}, nil
}

func (s *platformService) QueueSync(ctx context.Context, userID uuid.UUID) (*model.SyncQueuedResponse, error) {
	identity, err := s.activeIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}

	taskID, err := s.enqueuer.EnqueueLibrarySync(ctx, shared.LibrarySyncPayload{
		UserID:         userID.String(),
		Platform:       identity.Platform,
		PlatformUserID: identity.PlatformUserID,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID.String()).Str("task_id", taskID).Msg("Library sync queued")
	return &model.SyncQueuedResponse{TaskID: taskID}, nil
}

// =====================================================
// STEAM SIGN-IN
// =====================================================

func (s *platformService) SteamLoginURL(userID uuid.UUID) (*model.LoginURLResponse, error) {
	state, err := s.signer.GenerateStateToken(userID.String(), s.cfg.StateTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign state: %w", err)
	}

	returnTo := s.cfg.PublicURL + callbackPath + "?" + url.Values{"state": {state}}.Encode()
	return &model.LoginURLResponse{
		RedirectURL: s.steam.LoginURL(returnTo, s.cfg.PublicURL),
	}, nil
}

func (s *platformService) CompleteSteamLogin(ctx context.Context, state string, query url.Values) (*model.ConnectResponse, error) {
	// Step 1: Recover the user from the signed state
	raw, err := s.signer.ValidateStateToken(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidState, err)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidState, err)
	}

	// Step 2: Have Steam confirm the assertion
	steamID, err := s.steam.VerifyAssertion(ctx, query, s.cfg.PublicURL+callbackPath)
	if err != nil {
		return nil, mapSteamError(err)
	}

	// Step 3: Link and sync
	return s.connect(ctx, userID, steamID)
}

func mapSteamError(err error) error {
	switch {
	case errors.Is(err, steam.ErrProfileNotFound):
		return fmt.Errorf("%w: %v", model.ErrProfileNotFound, err)
	case errors.Is(err, steam.ErrInvalidAssertion):
		return fmt.Errorf("%w: %v", model.ErrSteamRejected, err)
	case errors.Is(err, steam.ErrUpstream):
		return fmt.Errorf("%w: %v", model.ErrSteamUnavailable, err)
	default:
		return err
	}
}
