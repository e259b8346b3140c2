package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/F3nrir-00/gaming-library-tracker/internal/config"
	"github.com/F3nrir-00/gaming-library-tracker/migrations"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/logger"
)

const usage = `usage: migrate [up|down|status|version]

  up       apply all pending migrations
  down     roll back the most recent migration
  status   list migrations and whether they are applied
  version  print the current schema version`

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load database config")
	}

	db, err := sql.Open("postgres", dbConfig.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migration provider")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, provider, command); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}
}

// migrator is the part of *goose.Provider the commands use.
type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
	Down(ctx context.Context) (*goose.MigrationResult, error)
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
	GetDBVersion(ctx context.Context) (int64, error)
}

func run(ctx context.Context, m migrator, command string) error {
	switch command {
	case "up":
		results, err := m.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		if len(results) == 0 {
			log.Info().Msg("No pending migrations")
		}
		for _, r := range results {
			log.Info().
				Int64("version", r.Source.Version).
				Dur("duration", r.Duration).
				Msg("Applied migration")
		}

	case "down":
		result, err := m.Down(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		if result != nil {
			log.Info().Int64("version", result.Source.Version).Msg("Rolled back migration")
		}

	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		for _, s := range statuses {
			event := log.Info().
				Int64("version", s.Source.Version).
				Str("state", string(s.State))
			if !s.AppliedAt.IsZero() {
				event = event.Time("applied_at", s.AppliedAt)
			}
			event.Msg("Migration")
		}

	case "version":
		version, err := m.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		log.Info().Int64("version", version).Msg("Current schema version")

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
	return nil
}
