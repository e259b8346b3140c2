package igdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/cache"
)

// ErrAuth is returned when the client-credentials exchange fails.
var ErrAuth = errors.New("igdb: token exchange failed")

const gameFields = "name, summary, first_release_date, cover.url, artworks.url, screenshots.url, " +
	"involved_companies.company.name, involved_companies.developer, involved_companies.publisher, genres.name"

const searchCachePrefix = "igdb:search:"

type Config struct {
	ClientID      string
	ClientSecret  string
	TokenURL      string
	BaseURL       string
	MinInterval   time.Duration
	RefreshMargin time.Duration
	Timeout       time.Duration

	EditionSuffixes []string
	Normalizer      model.Normalizer

	// Cache is optional. When set, single-title search hits are cached.
	Cache    cache.Cache
	CacheTTL time.Duration

	HTTPClient *http.Client
}

// Client talks to IGDB. One instance is shared process-wide: the token cache
// and the request gate are per-instance state.
type Client struct {
	clientID      string
	clientSecret  string
	tokenURL      string
	baseURL       string
	minInterval   time.Duration
	refreshMargin time.Duration
	suffixes      []string
	normalizer    model.Normalizer
	httpClient    *http.Client
	cache         cache.Cache
	cacheTTL      time.Duration

	// single slot; lastRequest is only touched while holding it
	gate        chan struct{}
	lastRequest time.Time

	tokenMu   sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
	now   func() time.Time
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	suffixes := cfg.EditionSuffixes
	if suffixes == nil {
		suffixes = DefaultEditionSuffixes
	}
	normalizer := cfg.Normalizer
	if normalizer.StripChars == "" {
		normalizer = model.DefaultNormalizer
	}

	return &Client{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		tokenURL:      cfg.TokenURL,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		minInterval:   cfg.MinInterval,
		refreshMargin: cfg.RefreshMargin,
		suffixes:      suffixes,
		normalizer:    normalizer,
		httpClient:    httpClient,
		cache:         cfg.Cache,
		cacheTTL:      cfg.CacheTTL,
		gate:          make(chan struct{}, 1),
		now:           time.Now,
	}
}

// ============================================================
// TOKEN
// ============================================================

// accessToken returns the cached bearer token, exchanging client credentials
// when it is missing or within refreshMargin of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-c.refreshMargin)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MetadataRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	metrics.MetadataRequests.WithLabelValues("token", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrAuth, resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	log.Debug().Time("expires_at", c.expiresAt).Msg("[IGDB] access token refreshed")

	return c.token, nil
}

// ============================================================
// GATE
// ============================================================

// acquire takes the single request slot and waits until minInterval has
// passed since the previous request started.
func (c *Client) acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !c.lastRequest.IsZero() {
		if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				c.release()
				return ctx.Err()
			}
		}
	}

	c.lastRequest = time.Now()
	metrics.MetadataGateWait.Observe(time.Since(start).Seconds())
	return nil
}

func (c *Client) release() {
	<-c.gate
}

// ============================================================
// REQUESTS
// ============================================================

// query POSTs an Apicalypse body. A non-2xx answer is logged and reported
// as no results.
func (c *Client) query(ctx context.Context, endpoint, body string) ([]Game, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("igdb: build request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.MetadataRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("igdb: request: %w", err)
	}
	defer resp.Body.Close()
	metrics.MetadataRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Str("body", string(snippet)).
			Msg("[IGDB] request rejected")
		return nil, nil
	}

	var games []Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("igdb: decode: %w", err)
	}
	return games, nil
}

func searchBody(title string, limit int) string {
	return fmt.Sprintf("search \"%s\";\nfields %s;\nlimit %d;\n", escape(title), gameFields, limit)
}

type searchStage struct {
	name  string
	query string
}

// searchStages lists exact, cleaned and base-title queries, skipping a stage
// whose query equals the previous stage's input.
func searchStages(title string, suffixes []string) []searchStage {
	stages := []searchStage{{name: "exact", query: title}}

	clean := CleanTitle(title, suffixes)
	if clean != "" && clean != title {
		stages = append(stages, searchStage{name: "clean", query: clean})
	}

	base := BaseTitle(clean)
	if base != "" && base != clean {
		stages = append(stages, searchStage{name: "base", query: base})
	}

	return stages
}

func (c *Client) searchUncached(ctx context.Context, title string) (*Game, error) {
	for _, st := range searchStages(title, c.suffixes) {
		games, err := c.query(ctx, "games", searchBody(st.query, 1))
		if err != nil {
			return nil, err
		}
		if len(games) > 0 {
			metrics.MetadataSearchStage.WithLabelValues(st.name).Inc()
			log.Debug().
				Str("title", title).
				Str("stage", st.name).
				Str("query", st.query).
				Int64("igdb_id", games[0].ID).
				Msg("[IGDB] match")
			return &games[0], nil
		}
	}

	metrics.MetadataSearchStage.WithLabelValues("none").Inc()
	log.Debug().Str("title", title).Msg("[IGDB] no match")
	return nil, nil
}

// Search finds the best single match for title, trying exact, cleaned and
// base title in that order. (nil, nil) means no stage matched.
func (c *Client) Search(ctx context.Context, title string) (*Game, error) {
	game, _, err := c.search(ctx, title)
	return game, err
}

func (c *Client) searchKey(title string) string {
	return searchCachePrefix + c.normalizer.Normalize(title)
}

// search is Search that also reports whether the match came from the cache.
func (c *Client) search(ctx context.Context, title string) (*Game, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, false, nil
	}
	if c.cache == nil {
		game, err := c.searchUncached(ctx, title)
		return game, false, err
	}

	key := c.searchKey(title)

	var cached Game
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("[IGDB] cache read failed")
	}
	if found {
		metrics.MetadataCacheHits.WithLabelValues("hit").Inc()
		return &cached, true, nil
	}
	metrics.MetadataCacheHits.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		game, err := c.searchUncached(ctx, title)
		if err != nil || game == nil {
			return game, err
		}
		if err := c.cache.Set(ctx, key, game, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[IGDB] cache write failed")
		}
		return game, nil
	})
	if err != nil {
		return nil, false, err
	}
	game, _ := v.(*Game)
	return game, false, nil
}

// SearchMany returns up to limit matches for a free-text query.
func (c *Client) SearchMany(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	games, err := c.query(ctx, "games", searchBody(query, limit))
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(games))
	for i := range games {
		results = append(results, games[i].ToSearchResult())
	}
	return results, nil
}

// GetByID fetches a game by IGDB id. (nil, nil) when it does not exist.
func (c *Client) GetByID(ctx context.Context, id int64) (*Game, error) {
	body := fmt.Sprintf("fields %s;\nwhere id = %d;\nlimit 1;\n", gameFields, id)
	games, err := c.query(ctx, "games", body)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// Lookup builds a catalog entry from IGDB, by id when given and by title
// search otherwise or when the id misses.
func (c *Client) Lookup(ctx context.Context, igdbID *int64, title string) (*model.CatalogEntry, error) {
	var game *Game
	var err error

	if igdbID != nil {
		game, err = c.GetByID(ctx, *igdbID)
		if err != nil {
			return nil, err
		}
	}
	if game == nil {
		game, err = c.Search(ctx, title)
		if err != nil {
			return nil, err
		}
	}
	if game == nil {
		return nil, nil
	}

	entry := game.ToCatalogEntry(c.normalizer)
	return &entry, nil
}

// Enrich fills entry from the best IGDB match. Any failure leaves entry
// unchanged.
func (c *Client) Enrich(ctx context.Context, entry model.CatalogEntry) model.CatalogEntry {
	game, fromCache, err := c.search(ctx, entry.Title)
	if err != nil {
		log.Warn().Err(err).Str("title", entry.Title).Msg("[IGDB] enrichment failed")
		return entry
	}
	if game == nil {
		log.Info().Str("title", entry.Title).Msg("[IGDB] no metadata found")
		return entry
	}

	enriched := game.Apply(entry)
	// A cached match that leaves the entry incomplete may predate IGDB
	// filling the game in; drop it so the next backfill asks IGDB again.
	if fromCache && enriched.NeedsBackfill() {
		key := c.searchKey(entry.Title)
		if err := c.cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("[IGDB] cache invalidation failed")
		} else {
			log.Debug().Str("key", key).Msg("[IGDB] dropped incomplete cached match")
		}
	}
	return enriched
}
