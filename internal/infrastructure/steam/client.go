package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
)

var (
	// ErrUpstream wraps transport failures and non-2xx answers.
	ErrUpstream = errors.New("steam: upstream error")
	// ErrProfileNotFound means a vanity handle did not resolve.
	ErrProfileNotFound = errors.New("steam: profile not found")
)

const (
	ownedGamesPath = "/IPlayerService/GetOwnedGames/v1/"
	resolveVanity  = "/ISteamUser/ResolveVanityURL/v1/"

	DefaultOpenIDURL      = "https://steamcommunity.com/openid/login"
	DefaultHeaderImageURL = "https://cdn.cloudflare.steamstatic.com/steam/apps/%d/header.jpg"
)

type Config struct {
	APIKey         string
	BaseURL        string
	OpenIDURL      string
	HeaderImageURL string
	Normalizer     model.Normalizer
	Timeout        time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration

	HTTPClient *http.Client
}

// Client reads a player's library from the Steam Web API.
type Client struct {
	apiKey      string
	baseURL     string
	openIDURL   string
	headerImage string
	normalizer  model.Normalizer
	httpClient  *http.Client
	cb          *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	headerImage := cfg.HeaderImageURL
	if headerImage == "" {
		headerImage = DefaultHeaderImageURL
	}
	normalizer := cfg.Normalizer
	if normalizer.StripChars == "" {
		normalizer = model.DefaultNormalizer
	}
	openIDURL := cfg.OpenIDURL
	if openIDURL == "" {
		openIDURL = DefaultOpenIDURL
	}
	threshold := cfg.BreakerThreshold
	if threshold < 0 {
		threshold = 0
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		openIDURL:   openIDURL,
		headerImage: headerImage,
		normalizer:  normalizer,
		httpClient:  httpClient,
		cb:          newBreaker("steam-api", uint32(threshold), cfg.BreakerTimeout),
	}
}

// get performs a GET through the circuit breaker and returns the body of a
// 2xx response.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)
	params.Set("format", "json")
	target := c.baseURL + path + "?" + params.Encode()

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close()
		metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUpstream, endpoint, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("[STEAM] request rejected by breaker")
			return nil, fmt.Errorf("%w: %w", ErrUpstream, ErrUnavailable)
		}
		return nil, err
	}
	return body, nil
}

// ListOwnedGames returns the player's owned titles, including played
// free-to-play games. An empty library is not an error.
func (c *Client) ListOwnedGames(ctx context.Context, steamID string) ([]model.OwnedGame, error) {
	params := url.Values{}
	params.Set("steamid", steamID)
	params.Set("include_appinfo", "1")
	params.Set("include_played_free_games", "1")

	body, err := c.get(ctx, "owned_games", ownedGamesPath, params)
	if err != nil {
		return nil, err
	}

	var env ownedGamesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode owned games: %v", ErrUpstream, err)
	}

	games := make([]model.OwnedGame, 0, len(env.Response.Games))
	for _, g := range env.Response.Games {
		games = append(games, c.toOwnedGame(g))
	}

	log.Debug().
		Str("steam_id", steamID).
		Int("count", len(games)).
		Msg("[STEAM] owned games fetched")

	return games, nil
}

func (c *Client) toOwnedGame(g ownedGame) model.OwnedGame {
	owned := model.OwnedGame{
		PlatformGameID:  strconv.FormatInt(g.AppID, 10),
		PlaytimeMinutes: g.PlaytimeForever,
		Entry: model.CatalogEntry{
			Title:           g.Name,
			NormalizedTitle: c.normalizer.Normalize(g.Name),
			CoverImageURL:   fmt.Sprintf(c.headerImage, g.AppID),
		},
	}
	if g.RTimeLastPlayed > 0 {
		t := time.Unix(g.RTimeLastPlayed, 0).UTC()
		owned.LastPlayedAt = &t
	}
	return owned
}

// ResolveHandle turns a vanity handle into a 64-bit Steam id.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	params := url.Values{}
	params.Set("vanityurl", handle)

	body, err := c.get(ctx, "resolve_vanity", resolveVanity, params)
	if err != nil {
		return "", err
	}

	var env vanityEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: decode vanity response: %v", ErrUpstream, err)
	}
	if env.Response.Success != 1 || env.Response.SteamID == "" {
		return "", ErrProfileNotFound
	}
	return env.Response.SteamID, nil
}
