// Package devseed populates a development database with well-known
// invitation codes so the sign-up flow can be exercised without an
// operator generating codes first.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lacs-team/appfun-api/internal/core"
	"github.com/lacs-team/appfun-api/internal/data"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB          *sql.DB
	invitations *data.InvitationRepo
}

// NewServices constructs the repositories used for seeding against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:          db,
		invitations: data.NewInvitationRepo(db),
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := seedInvitationCodes(ctx, svcs.invitations, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

type invitationSeedSpec struct {
	code    string
	maxUses int
	ttl     time.Duration
}

func defaultInvitationSeeds() []invitationSeedSpec {
	year := 365 * 24 * time.Hour
	return []invitationSeedSpec{
		{code: "TEST0001", maxUses: 100, ttl: year},
		{code: "TEST0002", maxUses: 100, ttl: year},
		{code: "TEST0003", maxUses: 100, ttl: year},
		{code: "DEMO1234", maxUses: 50, ttl: year},
		{code: "SAMPLE01", maxUses: 10, ttl: 30 * 24 * time.Hour},
	}
}

func seedInvitationCodes(ctx context.Context, repo *data.InvitationRepo, logger *slog.Logger) int {
	failures := 0
	for _, spec := range defaultInvitationSeeds() {
		created, err := createInvitationCode(ctx, repo, spec)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create invitation code", "code", spec.code, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "invitation code already exists"
			if created {
				msg = "created invitation code"
			}
			logger.InfoContext(ctx, msg, "code", spec.code, "max_uses", spec.maxUses)
		}
	}
	return failures
}

func createInvitationCode(ctx context.Context, repo *data.InvitationRepo, spec invitationSeedSpec) (bool, error) {
	_, err := repo.Create(ctx, core.CreateInvitationParams{
		Code:        spec.code,
		GeneratedBy: "devseed",
		MaxUses:     spec.maxUses,
		ExpiresAt:   time.Now().Add(spec.ttl),
	})
	if err != nil {
		if errors.Is(err, data.ErrInvitationExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
