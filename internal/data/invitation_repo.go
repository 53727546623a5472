package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data/pgxutil"
	"github.com/lacs-team/appfun-api/internal/domain/model"
)

// InvitationRepo provides database operations for invitation codes.
type InvitationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// compile-time interface check
var _ core.InvitationRepository = (*InvitationRepo)(nil)

// NewInvitationRepo creates a new InvitationRepo with real time provider.
func NewInvitationRepo(db *sql.DB) *InvitationRepo {
	return &InvitationRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewInvitationRepoWithTimeProvider creates a new InvitationRepo with a custom time provider (useful for tests).
func NewInvitationRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *InvitationRepo {
	return &InvitationRepo{DB: db, timeProvider: tp}
}

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	invitationColumns = `id, code, created_at, expires_at, used_at, used_by, used_by_profile_id,
		generated_by, ad_watch_id, is_active, max_uses, current_uses`

	invitationGetByCodeQuery = `
		SELECT ` + invitationColumns + `
		FROM invitation_codes
		WHERE code = $1`

	// The WHERE clause re-checks every redeemability condition so the
	// increment can never run against a disabled, expired, or exhausted
	// row. Concurrent redeemers serialize on the row lock; the losers of
	// the last use match zero rows.
	invitationRedeemQuery = `
		UPDATE invitation_codes
		SET current_uses = current_uses + 1,
		    used_at = COALESCE(used_at, $2),
		    used_by = $3,
		    used_by_profile_id = COALESCE($4, used_by_profile_id),
		    is_active = (current_uses + 1 < max_uses)
		WHERE code = $1
		  AND is_active
		  AND expires_at > $2
		  AND current_uses < max_uses
		RETURNING ` + invitationColumns

	invitationInsertQuery = `
		INSERT INTO invitation_codes (code, generated_by, ad_watch_id, max_uses, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + invitationColumns
)

// GetByCode retrieves an invitation code by its canonical form.
func (r *InvitationRepo) GetByCode(ctx context.Context, code string) (*model.InvitationCode, error) {
	var out model.InvitationCode
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, invitationGetByCodeQuery, code)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InvitationCode])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation code: %w", err)
	}
	return &out, nil
}

// Redeem consumes one use of the code in a single conditional UPDATE.
// Zero rows affected means the code stopped being redeemable between the
// caller's validation read and this write.
func (r *InvitationRepo) Redeem(
	ctx context.Context,
	params core.RedeemInvitationParams,
) (*model.InvitationCode, error) {
	now := r.timeProvider.Now().UTC()

	var out model.InvitationCode
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, invitationRedeemQuery, params.Code, now, params.UsedBy, params.ProfileID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InvitationCode])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotRedeemable
		}
		return nil, fmt.Errorf("failed to redeem invitation code: %w", err)
	}
	return &out, nil
}

// Create inserts a freshly generated code.
func (r *InvitationRepo) Create(
	ctx context.Context,
	params core.CreateInvitationParams,
) (*model.InvitationCode, error) {
	createdAt := r.timeProvider.Now().UTC()

	var out model.InvitationCode
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, invitationInsertQuery,
			params.Code,
			params.GeneratedBy,
			params.AdWatchID,
			params.MaxUses,
			createdAt,
			params.ExpiresAt.UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InvitationCode])
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrInvitationExists
		}
		return nil, fmt.Errorf("failed to create invitation code: %w", err)
	}
	return &out, nil
}

// List retrieves invitation codes with status filtering and pagination.
func (r *InvitationRepo) List(
	ctx context.Context,
	opts model.InvitationListOptions,
) ([]*model.InvitationCode, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT ` + invitationColumns + ` FROM invitation_codes`
	args := []any{}
	now := r.timeProvider.Now().UTC()

	switch opts.Status {
	case model.InvitationStatusActive:
		query += ` WHERE is_active AND expires_at > $1 AND current_uses < max_uses`
		args = append(args, now)
	case model.InvitationStatusUsed:
		query += ` WHERE current_uses > 0`
	case model.InvitationStatusExpired:
		query += ` WHERE expires_at <= $1`
		args = append(args, now)
	case model.InvitationStatusAll:
		// no filter
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	var rowsOut []model.InvitationCode
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.InvitationCode])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list invitation codes: %w", err)
	}

	res := make([]*model.InvitationCode, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}
