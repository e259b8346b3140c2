package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/steam"
	"github.com/F3nrir-00/gaming-library-tracker/internal/shared"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/jwt"
)

const gabenID = "76561197960287930"

// =====================================================
// FAKES
// =====================================================

type memRepo struct {
	identities map[string]*model.PlatformIdentity
	upsertErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{identities: make(map[string]*model.PlatformIdentity)}
}

func key(userID uuid.UUID, platform string) string {
	return userID.String() + "/" + strings.ToLower(platform)
}

func (m *memRepo) Upsert(_ context.Context, identity *model.PlatformIdentity) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	identity.IsActive = true
	stored := *identity
	if prev, ok := m.identities[key(identity.UserID, identity.Platform)]; ok {
		stored.LastSyncedAt = prev.LastSyncedAt
		identity.LastSyncedAt = prev.LastSyncedAt
	}
	m.identities[key(identity.UserID, identity.Platform)] = &stored
	return nil
}

func (m *memRepo) GetActive(_ context.Context, userID uuid.UUID, platform string) (*model.PlatformIdentity, error) {
	p, ok := m.identities[key(userID, platform)]
	if !ok || !p.IsActive {
		return nil, model.ErrConnectionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListActive(_ context.Context, userID uuid.UUID) ([]model.PlatformIdentity, error) {
	out := []model.PlatformIdentity{}
	for _, p := range m.identities {
		if p.UserID == userID && p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) Deactivate(_ context.Context, userID uuid.UUID, platform string) error {
	p, ok := m.identities[key(userID, platform)]
	if !ok {
		return model.ErrConnectionNotFound
	}
	p.IsActive = false
	return nil
}

type fakeSteam struct {
	resolveFn func(handle string) (string, error)
	verifyFn  func(query url.Values) (string, error)
	callbacks []string
}

func (f *fakeSteam) ResolveHandle(_ context.Context, handle string) (string, error) {
	return f.resolveFn(handle)
}

func (f *fakeSteam) LoginURL(returnTo, realm string) string {
	return "https://steam.example/openid?" + url.Values{"return_to": {returnTo}, "realm": {realm}}.Encode()
}

func (f *fakeSteam) VerifyAssertion(_ context.Context, query url.Values, callbackURL string) (string, error) {
	f.callbacks = append(f.callbacks, callbackURL)
	return f.verifyFn(query)
}

type fakeSync struct {
	calls []string
	n     int
	err   error
}

func (f *fakeSync) SyncUserGames(_ context.Context, _ uuid.UUID, platformUserID string) (int, error) {
	f.calls = append(f.calls, platformUserID)
	return f.n, f.err
}

type fakeEnqueuer struct {
	payloads []shared.LibrarySyncPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueLibrarySync(_ context.Context, p shared.LibrarySyncPayload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "task-1", nil
}

type fixture struct {
	repo     *memRepo
	steam    *fakeSteam
	sync     *fakeSync
	enqueuer *fakeEnqueuer
	signer   *jwt.Manager
	svc      *platformService
}

func newFixture() *fixture {
	f := &fixture{
		repo: newMemRepo(),
		steam: &fakeSteam{
			resolveFn: func(string) (string, error) { return gabenID, nil },
			verifyFn:  func(url.Values) (string, error) { return gabenID, nil },
		},
		sync:     &fakeSync{n: 12},
		enqueuer: &fakeEnqueuer{},
		signer:   jwt.NewManager("test-secret", time.Minute),
	}
	f.svc = NewPlatformService(f.repo, f.steam, f.sync, f.enqueuer, f.signer, Config{
		Platform:  "Steam",
		PublicURL: "https://api.example.com/",
	}).(*platformService)
	return f
}

// =====================================================
// TESTS
// =====================================================

func TestConnectSteam(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		setup       func(f *fixture)
		wantErr     error
		wantSyncErr bool
		wantGames   int
	}{
		{name: "numeric id used as is", input: gabenID, wantGames: 12},
		{
			name:  "vanity handle resolved",
			input: "gabelogannewell",
			setup: func(f *fixture) {
				f.steam.resolveFn = func(h string) (string, error) {
					if h != "gabelogannewell" {
						return "", steam.ErrProfileNotFound
					}
					return gabenID, nil
				}
			},
			wantGames: 12,
		},
		{
			name:  "unknown handle",
			input: "nobody-here",
			setup: func(f *fixture) {
				f.steam.resolveFn = func(string) (string, error) { return "", steam.ErrProfileNotFound }
			},
			wantErr: model.ErrProfileNotFound,
		},
		{name: "empty input", input: "  ", wantErr: model.ErrInvalidSteamID},
		{
			name:  "sync failure keeps connection",
			input: gabenID,
			setup: func(f *fixture) {
				f.sync.err = fmt.Errorf("fetch: %w", steam.ErrUpstream)
			},
			wantSyncErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			userID := uuid.New()

			resp, err := f.svc.ConnectSteam(context.Background(), userID, model.ConnectSteamRequest{SteamID: tt.input})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.repo.identities)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, gabenID, resp.Connection.PlatformUserID)
			assert.Equal(t, tt.wantSyncErr, resp.SyncFailed)
			assert.Equal(t, tt.wantGames, resp.GamesSynced)
			assert.Equal(t, []string{gabenID}, f.sync.calls)

			stored, err := f.repo.GetActive(context.Background(), userID, "Steam")
			require.NoError(t, err)
			assert.Equal(t, gabenID, stored.PlatformUserID)
		})
	}
}

func TestConnectSteam_SaveFailureSkipsSync(t *testing.T) {
	f := newFixture()
	f.repo.upsertErr = errors.New("db down")

	_, err := f.svc.ConnectSteam(context.Background(), uuid.New(), model.ConnectSteamRequest{SteamID: gabenID})
	require.Error(t, err)
	assert.Empty(t, f.sync.calls)
}

func TestDisconnect_ThenListAndSync(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	ctx := context.Background()

	_, err := f.svc.ConnectSteam(ctx, userID, model.ConnectSteamRequest{SteamID: gabenID})
	require.NoError(t, err)

	conns, err := f.svc.ListConnections(ctx, userID)
	require.NoError(t, err)
	require.Len(t, conns, 1)

	require.NoError(t, f.svc.Disconnect(ctx, userID, "STEAM"))

	conns, err = f.svc.ListConnections(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, conns)

	_, err = f.svc.SyncNow(ctx, userID)
	assert.ErrorIs(t, err, model.ErrNotConnected)

	assert.ErrorIs(t, f.svc.Disconnect(ctx, userID, "xbox"), model.ErrConnectionNotFound)
}

func TestSyncNow(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	fixed := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	_, err := f.svc.SyncNow(context.Background(), userID)
	require.ErrorIs(t, err, model.ErrNotConnected)

	_, err = f.svc.ConnectSteam(context.Background(), userID, model.ConnectSteamRequest{SteamID: gabenID})
	require.NoError(t, err)

	f.sync.n = 40
	resp, err := f.svc.SyncNow(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 40, resp.GamesSynced)
	assert.Equal(t, fixed, resp.LastSyncedAt)

	f.sync.err = errors.New("pq: deadlock detected")
	_, err = f.svc.SyncNow(context.Background(), userID)
	assert.ErrorIs(t, err, model.ErrSyncFailed)
}

func TestQueueSync(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	_, err := f.svc.QueueSync(context.Background(), userID)
	require.ErrorIs(t, err, model.ErrNotConnected)

	_, err = f.svc.ConnectSteam(context.Background(), userID, model.ConnectSteamRequest{SteamID: gabenID})
	require.NoError(t, err)
	syncsBefore := len(f.sync.calls)

	resp, err := f.svc.QueueSync(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "task-1", resp.TaskID)
	require.Len(t, f.enqueuer.payloads, 1)
	assert.Equal(t, shared.LibrarySyncPayload{
		UserID:         userID.String(),
		Platform:       "Steam",
		PlatformUserID: gabenID,
	}, f.enqueuer.payloads[0])
	assert.Len(t, f.sync.calls, syncsBefore, "queued sync does not run inline")
}

func TestSteamLogin_RoundTrip(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	login, err := f.svc.SteamLoginURL(userID)
	require.NoError(t, err)

	redirect, err := url.Parse(login.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", redirect.Query().Get("realm"))

	returnTo, err := url.Parse(redirect.Query().Get("return_to"))
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/auth/steam/callback", returnTo.Path)
	state := returnTo.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err := f.svc.CompleteSteamLogin(context.Background(), state, url.Values{"openid.mode": {"id_res"}})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.GamesSynced)
	assert.Equal(t, []string{"https://api.example.com/api/v1/auth/steam/callback"}, f.steam.callbacks)

	stored, err := f.repo.GetActive(context.Background(), userID, "Steam")
	require.NoError(t, err)
	assert.Equal(t, gabenID, stored.PlatformUserID)
}

func TestCompleteSteamLogin_Failures(t *testing.T) {
	f := newFixture()
	state, err := f.signer.GenerateStateToken(uuid.NewString(), time.Minute)
	require.NoError(t, err)
	access, err := f.signer.GenerateAccessToken(uuid.NewString(), "gordon")
	require.NoError(t, err)

	_, err = f.svc.CompleteSteamLogin(context.Background(), "garbage", nil)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	_, err = f.svc.CompleteSteamLogin(context.Background(), access, nil)
	assert.ErrorIs(t, err, model.ErrInvalidState)

	f.steam.verifyFn = func(url.Values) (string, error) { return "", steam.ErrInvalidAssertion }
	_, err = f.svc.CompleteSteamLogin(context.Background(), state, nil)
	assert.ErrorIs(t, err, model.ErrSteamRejected)

	assert.Empty(t, f.repo.identities)
	assert.Empty(t, f.sync.calls)
}
