package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/platform/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUpsert(t *testing.T) {
	mock := newMock(t)
	repo := NewPostgresRepository(mock)

	synced := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	identity := &model.PlatformIdentity{
		UserID:         uuid.New(),
		Platform:       "Steam",
		PlatformUserID: "76561197960287930",
		ConnectedAt:    time.Now().UTC(),
	}

	mock.ExpectQuery(`INSERT INTO platform_identities .* ON CONFLICT \(user_id, platform\) DO UPDATE .* RETURNING last_synced_at`).
		WithArgs(identity.UserID, "Steam", "76561197960287930", identity.ConnectedAt).
		WillReturnRows(pgxmock.NewRows([]string{"last_synced_at"}).AddRow(&synced))

	require.NoError(t, repo.Upsert(context.Background(), identity))
	assert.True(t, identity.IsActive)
	require.NotNil(t, identity.LastSyncedAt)
	assert.Equal(t, synced, *identity.LastSyncedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActive(t *testing.T) {
	userID := uuid.New()
	connected := time.Now().UTC()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM platform_identities WHERE is_active = \$1 AND platform = \$2 AND user_id = \$3`).
					WithArgs(true, "Steam", userID).
					WillReturnRows(pgxmock.NewRows(identityColumns).
						AddRow(userID, "Steam", "76561197960287930", true, connected, (*time.Time)(nil)))
			},
		},
		{
			name: "missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .* FROM platform_identities`).
					WithArgs(true, "Steam", userID).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: model.ErrConnectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			got, err := NewPostgresRepository(mock).GetActive(context.Background(), userID, "Steam")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "76561197960287930", got.PlatformUserID)
			assert.Nil(t, got.LastSyncedAt)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListActive(t *testing.T) {
	mock := newMock(t)
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM platform_identities WHERE is_active = \$1 AND user_id = \$2 ORDER BY connected_at ASC`).
		WithArgs(true, userID).
		WillReturnRows(pgxmock.NewRows(identityColumns).
			AddRow(userID, "Steam", "76561197960287930", true, now, &now))

	got, err := NewPostgresRepository(mock).ListActive(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Steam", got[0].Platform)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive_Empty(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM platform_identities`).
		WillReturnRows(pgxmock.NewRows(identityColumns))

	got, err := NewPostgresRepository(mock).ListActive(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeactivate(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		affected int64
		dbErr    error
		wantErr  error
	}{
		{name: "deactivated", affected: 1},
		{name: "no such connection", affected: 0, wantErr: model.ErrConnectionNotFound},
		{name: "db failure", dbErr: errors.New("conn reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`UPDATE platform_identities SET is_active = FALSE WHERE user_id = \$1 AND LOWER\(platform\) = LOWER\(\$2\)`).
				WithArgs(userID, "steam")
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))
			}

			err := NewPostgresRepository(mock).Deactivate(context.Background(), userID, "steam")
			switch {
			case tt.dbErr != nil:
				assert.ErrorIs(t, err, tt.dbErr)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
