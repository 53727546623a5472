package core

import (
	"context"
	"time"

	"github.com/lacs-team/appfun-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// RedeemInvitationParams groups parameters for InvitationRepository.Redeem to keep param count ≤3.
type RedeemInvitationParams struct {
	Code      string
	UsedBy    string // identity provider user id
	ProfileID *int64 // resolved application profile id, when known
}

// CreateInvitationParams groups parameters for InvitationRepository.Create.
type CreateInvitationParams struct {
	Code        string
	GeneratedBy string
	AdWatchID   *string
	MaxUses     int
	ExpiresAt   time.Time
}

// InvitationRepository defines the interface for invitation code data operations.
type InvitationRepository interface {
	// GetByCode fetches a code by its canonical (uppercase) form.
	GetByCode(ctx context.Context, code string) (*model.InvitationCode, error)

	// Redeem consumes one use of the code in a single conditional write.
	// The write re-checks active/expiry/use-count, so concurrent redeemers
	// can never push current_uses past max_uses.
	Redeem(ctx context.Context, params RedeemInvitationParams) (*model.InvitationCode, error)

	// Create inserts a freshly generated code.
	Create(ctx context.Context, params CreateInvitationParams) (*model.InvitationCode, error)

	// List returns a page of codes matching the options.
	List(ctx context.Context, opts model.InvitationListOptions) ([]*model.InvitationCode, error)
}

// ProfileRepository defines the interface for user profile data operations.
type ProfileRepository interface {
	// GetByAuthUserID fetches the profile owned by an identity provider user id.
	GetByAuthUserID(ctx context.Context, authUserID string) (*model.UserProfile, error)

	// Upsert creates the profile on first sight and refreshes mutable fields after.
	Upsert(ctx context.Context, req *model.UpsertProfileRequest) (*model.UserProfile, error)
}

// CatalogEntry is one software listing as served by the remote content API.
type CatalogEntry struct {
	Slug      string
	UpdatedAt *time.Time
}

// CatalogClient fetches listings from the remote content API.
type CatalogClient interface {
	ListEntries(ctx context.Context) ([]CatalogEntry, error)
}
