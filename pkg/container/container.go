package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/config"
	libraryHandler "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/handler"
	libraryJob "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/job"
	libraryModel "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	libraryRepo "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/repository"
	libraryService "github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/service"
	platformHandler "github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/handler"
	platformRepo "github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/repository"
	platformService "github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/service"
	infraCache "github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/cache"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/database"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/igdb"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/queue"
	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/steam"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/cache"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/jwt"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds the application's dependency graph. Both binaries build
// the same graph; the worker simply ignores the HTTP handlers.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client
	Enqueuer    queue.Enqueuer

	SteamClient *steam.Client
	IGDBClient  *igdb.Client

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	LibraryRepo  libraryRepo.Repository
	PlatformRepo platformRepo.Repository

	// ========================================
	// SERVICE LAYER
	// ========================================
	SyncService     libraryService.SyncService
	LibraryService  libraryService.ServiceInterface
	PlatformService platformService.ServiceInterface

	// ========================================
	// HANDLER LAYER
	// ========================================
	LibraryHandler  *libraryHandler.LibraryHandler
	PlatformHandler *platformHandler.PlatformHandler
	SyncJob         *libraryJob.SyncHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the graph in dependency order:
// config, infrastructure, clients, repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Info().Msg("Initializing DI container")
	c := &Container{}

	// STEP 1: CONFIGURATION
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	// STEP 2: DATABASE
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db

	// STEP 3: REDIS (cache + queue)
	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		// The metadata cache is optional; searches go straight to IGDB.
		log.Warn().Err(err).Msg("Redis connection failed (non-critical)")
	}
	c.Cache = infraCache.NewRedisCache(c.Redis, "gl:")

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	c.Enqueuer = queue.NewEnqueuer(c.AsynqClient, queue.Options{
		Queue:    cfg.Sync.QueueName,
		MaxRetry: cfg.Sync.TaskMaxRetry,
		Timeout:  cfg.Sync.TaskTimeout,
		Unique:   cfg.Sync.TaskUnique,
	})

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// STEP 4: EXTERNAL CLIENTS
	c.initClients()

	// STEP 5-7: REPOSITORIES, SERVICES, HANDLERS
	c.initRepositories()
	c.initServices()
	c.initHandlers()

	log.Info().
		Str("environment", cfg.App.Environment).
		Str("dedup", cfg.Sync.DedupStrategy).
		Msg("DI container initialized")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) normalizer() libraryModel.Normalizer {
	return libraryModel.Normalizer{StripChars: c.Config.Sync.StripChars}
}

func (c *Container) initClients() {
	cfg := c.Config

	c.SteamClient = steam.NewClient(steam.Config{
		APIKey:           cfg.Steam.APIKey,
		BaseURL:          cfg.Steam.BaseURL,
		OpenIDURL:        cfg.Steam.OpenIDURL,
		HeaderImageURL:   cfg.Steam.HeaderImageURL,
		Normalizer:       c.normalizer(),
		Timeout:          cfg.Steam.RequestTimeout,
		BreakerThreshold: cfg.Steam.BreakerThreshold,
		BreakerTimeout:   cfg.Steam.BreakerTimeout,
	})

	c.IGDBClient = igdb.NewClient(igdb.Config{
		ClientID:        cfg.IGDB.ClientID,
		ClientSecret:    cfg.IGDB.ClientSecret,
		TokenURL:        cfg.IGDB.TokenURL,
		BaseURL:         cfg.IGDB.BaseURL,
		MinInterval:     cfg.IGDB.MinRequestInterval,
		RefreshMargin:   cfg.IGDB.TokenRefreshMargin,
		Timeout:         cfg.IGDB.RequestTimeout,
		EditionSuffixes: cfg.Sync.EditionSuffixes,
		Normalizer:      c.normalizer(),
		Cache:           c.Cache,
		CacheTTL:        cfg.IGDB.SearchCacheTTL,
	})
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.LibraryRepo = libraryRepo.NewPostgresRepository(pool, libraryRepo.DedupStrategy(c.Config.Sync.DedupStrategy))
	c.PlatformRepo = platformRepo.NewPostgresRepository(pool)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.SyncService = libraryService.NewSyncService(
		c.LibraryRepo,
		c.SteamClient,
		c.IGDBClient,
		cfg.Sync.PlatformName,
	)

	c.LibraryService = libraryService.NewLibraryService(c.LibraryRepo, c.IGDBClient, libraryService.Config{
		Statuses:        cfg.Library.Statuses,
		SearchMinLength: cfg.Library.SearchMinLength,
		SearchLimit:     cfg.Library.SearchLimit,
		Normalizer:      c.normalizer(),
	})

	c.PlatformService = platformService.NewPlatformService(
		c.PlatformRepo,
		c.SteamClient,
		c.SyncService,
		c.Enqueuer,
		c.JWTManager,
		platformService.Config{
			Platform:  cfg.Sync.PlatformName,
			PublicURL: cfg.App.PublicURL,
		},
	)
}

func (c *Container) initHandlers() {
	c.LibraryHandler = libraryHandler.NewLibraryHandler(c.LibraryService)
	c.PlatformHandler = platformHandler.NewPlatformHandler(c.PlatformService, c.Config.App.ClientURL)
	c.SyncJob = libraryJob.NewSyncHandler(c.SyncService, c.Config.Sync.PlatformName)
}

// Cleanup releases pooled connections. Called on shutdown.
func (c *Container) Cleanup() {
	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close asynq client")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis")
		}
	}
	log.Info().Msg("Container cleanup completed")
}
