package offline

// Package offline provides a config-driven identity provider for local
// development and for deployments without a configured Supabase project.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
)

const minPasswordLength = 6

// Config controls the offline provider's fabricated identity.
type Config struct {
	UserID   string
	Email    string
	Username string
	FullName string
	// TokenLifetime defaults to 1h when zero.
	TokenLifetime time.Duration
}

// Provider implements ports.IdentityProvider without any remote calls.
// Any well-formed email with a password of at least six characters signs in
// as the configured identity; callers never branch on the active mode.
type Provider struct {
	cfg Config
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs an offline provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("offline auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("offline auth: Email is required")
	}
	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = time.Hour
	}
	return &Provider{cfg: cfg}, nil
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (domainauth.Identity, error) {
	if !wellFormedEmail(email) {
		return domainauth.Identity{}, errors.New("Invalid login credentials")
	}
	if len(password) < minPasswordLength {
		return domainauth.Identity{}, errors.New("Invalid login credentials")
	}
	return p.identity(email), nil
}

func (p *Provider) SignUp(_ context.Context, email, password, _ string) (ports.SignUpResult, error) {
	if !wellFormedEmail(email) {
		return ports.SignUpResult{}, errors.New("invalid email address")
	}
	if len(password) < minPasswordLength {
		return ports.SignUpResult{}, errors.New("password too short")
	}
	// Offline accounts never need email confirmation.
	return ports.SignUpResult{Identity: p.identity(email)}, nil
}

func (p *Provider) SignOut(_ context.Context, _ string) error {
	return nil
}

func (p *Provider) GetUser(_ context.Context, accessToken string) (domainauth.Identity, error) {
	if accessToken == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}
	id := p.identity(p.cfg.Email)
	id.AccessToken = accessToken
	return id, nil
}

func (p *Provider) UpdatePassword(_ context.Context, accessToken, newPassword string) error {
	if accessToken == "" {
		return errors.New("access token is required")
	}
	if len(newPassword) < minPasswordLength {
		return errors.New("password too short")
	}
	return nil
}

func (p *Provider) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	if !wellFormedEmail(email) {
		return errors.New("invalid email address")
	}
	return nil
}

// identity fabricates the configured identity. The signed-in email wins over
// the configured one so the UI reflects what the user typed.
func (p *Provider) identity(email string) domainauth.Identity {
	now := time.Now()
	confirmed := now
	return domainauth.Identity{
		UserID:           p.cfg.UserID,
		Email:            email,
		Username:         p.cfg.Username,
		FullName:         p.cfg.FullName,
		EmailConfirmedAt: &confirmed,
		AccessToken:      "offline-" + randomToken(24),
		RefreshToken:     "offline-" + randomToken(24),
		TokenExpiresAt:   now.Add(p.cfg.TokenLifetime),
	}
}

func wellFormedEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}

func randomToken(n int) string {
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in much deeper trouble;
		// fall back to a constant rather than panic in a dev-only path.
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) > n {
		s = s[:n]
	}
	return s
}
