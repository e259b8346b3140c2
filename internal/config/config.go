package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config holds the whole application configuration.
// Populated from environment variables (a .env file is loaded by cmd/*).
type Config struct {
	App     AppConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Steam   SteamConfig
	IGDB    IGDBConfig
	Sync    SyncConfig
	Library LibraryConfig
	Worker  WorkerConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	LogLevel    string
	ClientURL   string // frontend base URL, used for OpenID redirects
	PublicURL   string // this API's externally visible base URL
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

type SteamConfig struct {
	APIKey           string
	BaseURL          string
	OpenIDURL        string
	HeaderImageURL   string // fmt template, %d = appid
	RequestTimeout   time.Duration
	BreakerTimeout   time.Duration
	BreakerThreshold int
}

type IGDBConfig struct {
	ClientID           string
	ClientSecret       string
	TokenURL           string
	BaseURL            string
	MinRequestInterval time.Duration
	TokenRefreshMargin time.Duration
	RequestTimeout     time.Duration
	SearchCacheTTL     time.Duration
}

// Dedup strategies for catalog inserts racing across concurrent syncs.
const (
	DedupNone     = "none"
	DedupConflict = "conflict"
	DedupAdvisory = "advisory"
)

type SyncConfig struct {
	PlatformName    string
	DedupStrategy   string
	EditionSuffixes []string
	StripChars      string
	RateLimit       float64 // syncs per second per user
	RateBurst       int
	QueueName       string
	TaskTimeout     time.Duration
	TaskMaxRetry    int
	TaskUnique      time.Duration
}

type WorkerConfig struct {
	Concurrency int
	HealthPort  string
}

type LibraryConfig struct {
	Statuses        []string
	SearchMinLength int
	SearchLimit     int
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Gaming Library API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			ClientURL:   getEnv("CLIENT_URL", "http://localhost:5173"),
			PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 60),
		},
		Steam: SteamConfig{
			APIKey:           getEnv("STEAM_API_KEY", ""),
			BaseURL:          getEnv("STEAM_BASE_URL", "https://api.steampowered.com"),
			OpenIDURL:        getEnv("STEAM_OPENID_URL", "https://steamcommunity.com/openid/login"),
			HeaderImageURL:   getEnv("STEAM_HEADER_IMAGE_URL", "https://cdn.cloudflare.steamstatic.com/steam/apps/%d/header.jpg"),
			RequestTimeout:   getEnvDuration("STEAM_REQUEST_TIMEOUT", 30*time.Second),
			BreakerTimeout:   getEnvDuration("STEAM_BREAKER_TIMEOUT", time.Minute),
			BreakerThreshold: getEnvInt("STEAM_BREAKER_THRESHOLD", 5),
		},
		IGDB: IGDBConfig{
			ClientID:           getEnv("IGDB_CLIENT_ID", ""),
			ClientSecret:       getEnv("IGDB_CLIENT_SECRET", ""),
			TokenURL:           getEnv("IGDB_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
			BaseURL:            getEnv("IGDB_BASE_URL", "https://api.igdb.com/v4"),
			MinRequestInterval: getEnvDuration("IGDB_MIN_REQUEST_INTERVAL", 275*time.Millisecond),
			TokenRefreshMargin: getEnvDuration("IGDB_TOKEN_REFRESH_MARGIN", 5*time.Minute),
			RequestTimeout:     getEnvDuration("IGDB_REQUEST_TIMEOUT", 15*time.Second),
			SearchCacheTTL:     getEnvDuration("IGDB_SEARCH_CACHE_TTL", 24*time.Hour),
		},
		Sync: SyncConfig{
			PlatformName:  getEnv("SYNC_PLATFORM_NAME", "Steam"),
			DedupStrategy: getEnv("SYNC_CATALOG_DEDUP", DedupConflict),
			EditionSuffixes: getEnvList("SYNC_EDITION_SUFFIXES", []string{
				"GOTY",
				"Game of the Year Edition",
				"Definitive Edition",
				"Complete Edition",
				"Enhanced Edition",
				"Remastered",
			}),
			StripChars:   getEnv("SYNC_STRIP_CHARS", "®™©@:"),
			RateLimit:    getEnvFloat("SYNC_RATE_LIMIT", 1.0/30.0),
			RateBurst:    getEnvInt("SYNC_RATE_BURST", 2),
			QueueName:    getEnv("SYNC_QUEUE", "sync"),
			TaskTimeout:  getEnvDuration("SYNC_TASK_TIMEOUT", 10*time.Minute),
			TaskMaxRetry: getEnvInt("SYNC_TASK_MAX_RETRY", 3),
			TaskUnique:   getEnvDuration("SYNC_TASK_UNIQUE", 5*time.Minute),
		},
		Library: LibraryConfig{
			Statuses:        getEnvList("LIBRARY_STATUSES", []string{"Not Started", "In Progress", "Completed", "Abandoned"}),
			SearchMinLength: getEnvInt("LIBRARY_SEARCH_MIN_LENGTH", 2),
			SearchLimit:     getEnvInt("LIBRARY_SEARCH_LIMIT", 10),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 4),
			HealthPort:  getEnv("WORKER_HEALTH_PORT", "9999"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Environment, validation.Required, validation.In("development", "staging", "production", "test")),
		validation.Field(&c.App.Port, validation.Required, is.Port),
		validation.Field(&c.App.ClientURL, validation.Required, is.URL),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.IGDB,
		validation.Field(&c.IGDB.TokenURL, validation.Required, is.URL),
		validation.Field(&c.IGDB.BaseURL, validation.Required, is.URL),
		validation.Field(&c.IGDB.MinRequestInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("igdb: %w", err)
	}

	if err := validation.ValidateStruct(&c.Steam,
		validation.Field(&c.Steam.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Steam.HeaderImageURL, validation.Required),
	); err != nil {
		return fmt.Errorf("steam: %w", err)
	}

	if err := validation.ValidateStruct(&c.Sync,
		validation.Field(&c.Sync.PlatformName, validation.Required),
		validation.Field(&c.Sync.DedupStrategy, validation.Required, validation.In(DedupNone, DedupConflict, DedupAdvisory)),
		validation.Field(&c.Sync.RateBurst, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := validation.ValidateStruct(&c.Library,
		validation.Field(&c.Library.Statuses, validation.Required),
		validation.Field(&c.Library.SearchLimit, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("library: %w", err)
	}

	if err := validation.ValidateStruct(&c.Worker,
		validation.Field(&c.Worker.Concurrency, validation.Min(1)),
		validation.Field(&c.Worker.HealthPort, validation.Required, is.Port),
	); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Steam.APIKey == "" {
			return fmt.Errorf("STEAM_API_KEY must be set in production")
		}
		if c.IGDB.ClientID == "" || c.IGDB.ClientSecret == "" {
			return fmt.Errorf("IGDB_CLIENT_ID and IGDB_CLIENT_SECRET must be set in production")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
