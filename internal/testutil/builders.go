// Package testutil provides testing utilities and helpers for the appfun auth and invitation system.
package testutil

import (
	"time"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/domain/model"
)

// InvitationBuilder provides a fluent interface for building InvitationCode rows for testing.
type InvitationBuilder struct {
	inv model.InvitationCode
}

// NewInvitation creates a new InvitationBuilder with sensible defaults.
func NewInvitation(code string) *InvitationBuilder {
	now := TestTime()
	return &InvitationBuilder{
		inv: model.InvitationCode{
			ID:          "00000000-0000-0000-0000-000000000001",
			Code:        code,
			CreatedAt:   now,
			ExpiresAt:   now.Add(model.DefaultInvitationTTL),
			GeneratedBy: "miniprogram",
			IsActive:    true,
			MaxUses:     1,
			CurrentUses: 0,
		},
	}
}

// WithMaxUses sets the use limit.
func (b *InvitationBuilder) WithMaxUses(n int) *InvitationBuilder {
	b.inv.MaxUses = n
	return b
}

// WithCurrentUses sets the consumed-use count.
func (b *InvitationBuilder) WithCurrentUses(n int) *InvitationBuilder {
	b.inv.CurrentUses = n
	return b
}

// Disabled marks the code inactive.
func (b *InvitationBuilder) Disabled() *InvitationBuilder {
	b.inv.IsActive = false
	return b
}

// ExpiredAt sets the expiry timestamp.
func (b *InvitationBuilder) ExpiredAt(t time.Time) *InvitationBuilder {
	b.inv.ExpiresAt = t
	return b
}

// WithGeneratedBy sets the origin tag.
func (b *InvitationBuilder) WithGeneratedBy(origin string) *InvitationBuilder {
	b.inv.GeneratedBy = origin
	return b
}

// Build returns the constructed invitation code.
func (b *InvitationBuilder) Build() model.InvitationCode {
	return b.inv
}

// SessionBuilder provides a fluent interface for building StoredSession records for testing.
type SessionBuilder struct {
	sess domainauth.StoredSession
}

// NewSession creates a new SessionBuilder with a valid signed-in user.
func NewSession() *SessionBuilder {
	now := TestTime()
	return &SessionBuilder{
		sess: domainauth.StoredSession{
			ID: "11111111-1111-1111-1111-111111111111",
			User: domainauth.User{
				ID:         7,
				AuthUserID: "22222222-2222-2222-2222-222222222222",
				Email:      "user@example.com",
				Username:   "user",
				CreatedAt:  now,
				UpdatedAt:  now,
				LoginTime:  now,
				ExpiresAt:  now.Add(24 * time.Hour),
				LoggedIn:   true,
			},
			LoginTime: now,
			ExpiresAt: now.Add(24 * time.Hour),
		},
	}
}

// WithEmail sets the user email.
func (b *SessionBuilder) WithEmail(email string) *SessionBuilder {
	b.sess.User.Email = email
	return b
}

// WithRememberMe marks the session as remember-me and stretches its expiry.
func (b *SessionBuilder) WithRememberMe() *SessionBuilder {
	b.sess.RememberMe = true
	b.sess.ExpiresAt = b.sess.LoginTime.Add(7 * 24 * time.Hour)
	b.sess.User.ExpiresAt = b.sess.ExpiresAt
	return b
}

// ExpiresIn sets expiry relative to the login time.
func (b *SessionBuilder) ExpiresIn(d time.Duration) *SessionBuilder {
	b.sess.ExpiresAt = b.sess.LoginTime.Add(d)
	b.sess.User.ExpiresAt = b.sess.ExpiresAt
	return b
}

// Build returns the constructed session record.
func (b *SessionBuilder) Build() domainauth.StoredSession {
	return b.sess
}
