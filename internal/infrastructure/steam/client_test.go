package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:    "api-key",
		BaseURL:   srv.URL,
		OpenIDURL: srv.URL + "/openid/login",
	})
}

func TestListOwnedGames(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ownedGamesPath, r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"response":{"game_count":2,"games":[
			{"appid":440,"name":"Team Fortress 2™","playtime_forever":120,"rtime_last_played":0},
			{"appid":570,"name":"Dota 2","playtime_forever":9000,"rtime_last_played":1700000000}
		]}}`))
	})

	games, err := c.ListOwnedGames(context.Background(), "76561198000000001")
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "api-key", got.Get("key"))
	assert.Equal(t, "76561198000000001", got.Get("steamid"))
	assert.Equal(t, "1", got.Get("include_appinfo"))
	assert.Equal(t, "1", got.Get("include_played_free_games"))

	tf2 := games[0]
	assert.Equal(t, "440", tf2.PlatformGameID)
	assert.Equal(t, 120, tf2.PlaytimeMinutes)
	assert.Nil(t, tf2.LastPlayedAt)
	assert.Equal(t, "Team Fortress 2™", tf2.Entry.Title)
	assert.Equal(t, "team fortress 2", tf2.Entry.NormalizedTitle)
	assert.Equal(t, "https://cdn.cloudflare.steamstatic.com/steam/apps/440/header.jpg", tf2.Entry.CoverImageURL)

	dota := games[1]
	require.NotNil(t, dota.LastPlayedAt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *dota.LastPlayedAt)
}

func TestListOwnedGames_EmptyLibrary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{}}`))
	})

	games, err := c.ListOwnedGames(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestListOwnedGames_UpstreamStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.ListOwnedGames(context.Background(), "1")
	require.ErrorIs(t, err, ErrUpstream)
}

func TestListOwnedGames_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, BreakerThreshold: 2, BreakerTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := c.ListOwnedGames(context.Background(), "1")
		require.ErrorIs(t, err, ErrUpstream)
	}

	_, err := c.ListOwnedGames(context.Background(), "1")
	require.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveHandle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, resolveVanity, r.URL.Path)
		if r.URL.Query().Get("vanityurl") == "gabelogannewell" {
			_, _ = w.Write([]byte(`{"response":{"steamid":"76561197960287930","success":1}}`))
			return
		}
		_, _ = w.Write([]byte(`{"response":{"success":42,"message":"No match"}}`))
	})

	id, err := c.ResolveHandle(context.Background(), "gabelogannewell")
	require.NoError(t, err)
	assert.Equal(t, "76561197960287930", id)

	_, err = c.ResolveHandle(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestLoginURL(t *testing.T) {
	c := NewClient(Config{})
	raw := c.LoginURL("https://api.example.com/api/v1/auth/steam/callback?state=abc", "https://api.example.com")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "steamcommunity.com", u.Host)

	q := u.Query()
	assert.Equal(t, "checkid_setup", q.Get("openid.mode"))
	assert.Equal(t, "https://api.example.com", q.Get("openid.realm"))
	assert.Equal(t, "https://api.example.com/api/v1/auth/steam/callback?state=abc", q.Get("openid.return_to"))
}

const testCallback = "https://api.example.com/api/v1/auth/steam/callback"

func assertion(claimedID string) url.Values {
	q := url.Values{}
	q.Set("openid.ns", openIDNamespace)
	q.Set("openid.mode", "id_res")
	q.Set("openid.claimed_id", claimedID)
	q.Set("openid.identity", claimedID)
	q.Set("openid.return_to", testCallback+"?state=s1")
	q.Set("openid.sig", "sig")
	q.Set("state", "s1")
	return q
}

func TestVerifyAssertion(t *testing.T) {
	var form url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:true\n"))
	})

	id, err := c.VerifyAssertion(context.Background(), assertion("https://steamcommunity.com/openid/id/76561198000000001"), testCallback)
	require.NoError(t, err)
	assert.Equal(t, "76561198000000001", id)
	assert.Equal(t, "check_authentication", form.Get("openid.mode"))
	assert.Equal(t, "sig", form.Get("openid.sig"))
	assert.Empty(t, form.Get("state"))
}

func TestVerifyAssertion_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ns:http://specs.openid.net/auth/2.0\nis_valid:false\n"))
	})

	_, err := c.VerifyAssertion(context.Background(), assertion("https://steamcommunity.com/openid/id/76561198000000001"), testCallback)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestVerifyAssertion_BadClaimedID(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.VerifyAssertion(context.Background(), assertion("https://evil.example.com/openid/id/1"), testCallback)
	assert.ErrorIs(t, err, ErrInvalidAssertion)
	assert.Zero(t, calls.Load())
}

func TestVerifyAssertion_ReturnToMismatch(t *testing.T) {
	tests := []struct {
		name     string
		returnTo string
		state    string
	}{
		{"foreign host", "https://attacker.example.com/api/v1/auth/steam/callback?state=s1", "s1"},
		{"foreign path", "https://api.example.com/other?state=s1", "s1"},
		{"downgraded scheme", "http://api.example.com/api/v1/auth/steam/callback?state=s1", "s1"},
		{"state swapped on callback", testCallback + "?state=s1", "s2"},
		{"missing", "", "s1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write([]byte("is_valid:true\n"))
			})

			q := assertion("https://steamcommunity.com/openid/id/76561198000000001")
			q.Set("openid.return_to", tt.returnTo)
			q.Set("state", tt.state)

			_, err := c.VerifyAssertion(context.Background(), q, testCallback)
			assert.ErrorIs(t, err, ErrInvalidAssertion)
			assert.Zero(t, calls.Load(), "check_authentication must not be attempted")
		})
	}
}
