package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data/pgxutil"
	"github.com/lacs-team/appfun-api/internal/domain/model"
)

// ProfileRepo provides database operations for user profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// compile-time interface check
var _ core.ProfileRepository = (*ProfileRepo)(nil)

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

const (
	profileColumns = `id, auth_user_id, username, full_name, avatar_url, created_at, updated_at`

	profileGetByAuthUserIDQuery = `
		SELECT ` + profileColumns + `
		FROM user_profiles
		WHERE auth_user_id = $1`

	// COALESCE keeps existing values when the caller has nothing newer.
	profileUpsertQuery = `
		INSERT INTO user_profiles (auth_user_id, username, full_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (auth_user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, user_profiles.username),
			full_name = COALESCE(EXCLUDED.full_name, user_profiles.full_name),
			avatar_url = COALESCE(EXCLUDED.avatar_url, user_profiles.avatar_url),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns
)

// GetByAuthUserID retrieves the profile owned by an identity provider user id.
func (r *ProfileRepo) GetByAuthUserID(ctx context.Context, authUserID string) (*model.UserProfile, error) {
	var out model.UserProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileGetByAuthUserIDQuery, authUserID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.UserProfile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &out, nil
}

// Upsert creates the profile on first sight and refreshes mutable fields after.
func (r *ProfileRepo) Upsert(ctx context.Context, req *model.UpsertProfileRequest) (*model.UserProfile, error) {
	if req == nil {
		return nil, errors.New("upsert profile request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()

	var out model.UserProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileUpsertQuery,
			req.AuthUserID,
			req.Username,
			req.FullName,
			req.AvatarURL,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.UserProfile])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return &out, nil
}
