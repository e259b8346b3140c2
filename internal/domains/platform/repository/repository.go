package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/database"
)

type Repository interface {
	// Upsert creates the identity or reactivates it with a new account id.
	Upsert(ctx context.Context, identity *model.PlatformIdentity) error
	GetActive(ctx context.Context, userID uuid.UUID, platform string) (*model.PlatformIdentity, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.PlatformIdentity, error)
	// Deactivate matches the platform name case-insensitively.
	Deactivate(ctx context.Context, userID uuid.UUID, platform string) error
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var identityColumns = []string{
	"user_id", "platform", "platform_user_id", "is_active", "connected_at", "last_synced_at",
}

type postgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) Repository {
	return &postgresRepository{db: db}
}

func identityDest(p *model.PlatformIdentity) []any {
	return []any{&p.UserID, &p.Platform, &p.PlatformUserID, &p.IsActive, &p.ConnectedAt, &p.LastSyncedAt}
}

func (r *postgresRepository) Upsert(ctx context.Context, identity *model.PlatformIdentity) error {
	query := `
		INSERT INTO platform_identities (user_id, platform, platform_user_id, is_active, connected_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (user_id, platform) DO UPDATE
		SET platform_user_id = EXCLUDED.platform_user_id,
		    is_active = TRUE,
		    connected_at = EXCLUDED.connected_at
		RETURNING last_synced_at
	`
	err := r.db.QueryRow(ctx, query,
		identity.UserID,
		identity.Platform,
		identity.PlatformUserID,
		identity.ConnectedAt,
	).Scan(&identity.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert platform identity: %w", err)
	}
	identity.IsActive = true
	return nil
}

func (r *postgresRepository) GetActive(ctx context.Context, userID uuid.UUID, platform string) (*model.PlatformIdentity, error) {
	sql, args, err := psql.Select(identityColumns...).
		From("platform_identities").
		Where(squirrel.Eq{"user_id": userID, "platform": platform, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	identity := &model.PlatformIdentity{}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(identityDest(identity)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get platform identity: %w", err)
	}
	return identity, nil
}

func (r *postgresRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]model.PlatformIdentity, error) {
	sql, args, err := psql.Select(identityColumns...).
		From("platform_identities").
		Where(squirrel.Eq{"user_id": userID, "is_active": true}).
		OrderBy("connected_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform identities: %w", err)
	}
	defer rows.Close()

	identities := []model.PlatformIdentity{}
	for rows.Next() {
		var p model.PlatformIdentity
		if err := rows.Scan(identityDest(&p)...); err != nil {
			return nil, fmt.Errorf("failed to scan platform identity: %w", err)
		}
		identities = append(identities, p)
	}
	return identities, rows.Err()
}

func (r *postgresRepository) Deactivate(ctx context.Context, userID uuid.UUID, platform string) error {
	query := `
		UPDATE platform_identities
		SET is_active = FALSE
		WHERE user_id = $1 AND LOWER(platform) = LOWER($2)
	`
	tag, err := r.db.Exec(ctx, query, userID, platform)
	if err != nil {
		return fmt.Errorf("failed to deactivate platform identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrConnectionNotFound
	}
	return nil
}
