package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration
// in internal/service.

import (
	"context"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
)

// SignUpResult reports the outcome of a registration attempt.
type SignUpResult struct {
	Identity domainauth.Identity

	// ConfirmationRequired is true when the provider created the account but
	// wants the email address confirmed before the first sign-in.
	ConfirmationRequired bool
}

// IdentityProvider is the remote identity service behind sign-in and sign-up.
// The offline implementation satisfies the same contract, so callers never
// branch on the configured mode.
type IdentityProvider interface {
	// SignInWithPassword exchanges credentials for an authenticated identity.
	SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error)

	// SignUp registers a new account. RedirectTo is where the confirmation
	// email should send the user afterwards; providers may ignore it.
	SignUp(ctx context.Context, email, password, redirectTo string) (SignUpResult, error)

	// SignOut revokes the provider-side session for the access token.
	SignOut(ctx context.Context, accessToken string) error

	// GetUser resolves the identity behind a bearer access token.
	GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error)

	// UpdatePassword changes the password of the token's account.
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error

	// ResetPasswordForEmail triggers the provider's reset email flow.
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// SessionStore persists the single durable session record.
//
// The contract is non-throwing: implementations log failures and degrade.
// Load reports absence for missing, malformed, or unreadable records; Save
// and Clear are best-effort.
type SessionStore interface {
	Load(ctx context.Context) (domainauth.StoredSession, bool)
	Save(ctx context.Context, sess domainauth.StoredSession)
	Clear(ctx context.Context)
}
