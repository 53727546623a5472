package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeSupabase uses the Supabase/GoTrue identity provider.
	AuthModeSupabase AuthMode = "supabase"
	// AuthModeOffline uses the built-in offline provider (for development and testing).
	AuthModeOffline AuthMode = "offline"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "supabase", "offline":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: supabase, offline)", v)
	}
}

// SupabaseConfig contains the Supabase/GoTrue identity provider configuration.
//
// URL and AnonKey are intentionally not required: when either is missing the
// application starts with authentication unconfigured rather than crashing,
// and sign-in attempts report the provider as unavailable.
type SupabaseConfig struct {
	URL            string        `env:"URL"`
	AnonKey        string        `env:"ANON_KEY"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// JWKSPath is the key-set path used to verify bearer access tokens,
	// relative to URL.
	JWKSPath string `env:"JWKS_PATH" envDefault:"/auth/v1/.well-known/jwks.json"`
}

// Configured reports whether enough settings are present to talk to Supabase.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.AnonKey != ""
}

// OfflineAuthConfig controls the offline provider identity.
// Used when AUTH_MODE=offline for development and testing.
type OfflineAuthConfig struct {
	UserID   string `env:"USER_ID"   envDefault:"offline-user"`
	Email    string `env:"EMAIL"     envDefault:"dev@example.com"`
	Username string `env:"USERNAME"  envDefault:"dev"`
	FullName string `env:"FULL_NAME" envDefault:"Dev User"`
}

// SessionConfig groups session lifetime policy.
type SessionConfig struct {
	// Duration is the session lifetime for a plain sign-in.
	Duration time.Duration `env:"DURATION" envDefault:"24h"`

	// RememberMeDuration is the session lifetime when remember-me is requested.
	RememberMeDuration time.Duration `env:"REMEMBER_ME_DURATION" envDefault:"168h"`

	// RenewWithin re-stamps a restored session whose remaining lifetime
	// is below this threshold.
	RenewWithin time.Duration `env:"RENEW_WITHIN" envDefault:"24h"`

	// RefreshInterval is the periodic background refresh cadence.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"5m"`

	// StorageKey is the key the persisted session record lives under.
	StorageKey string `env:"STORAGE_KEY" envDefault:"appfun:auth:session"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.Duration < time.Minute {
		s.Duration = 24 * time.Hour
	}
	if s.RememberMeDuration < s.Duration {
		s.RememberMeDuration = s.Duration
	}
	if s.RefreshInterval < 10*time.Second {
		s.RefreshInterval = 10 * time.Second
	}
	if s.StorageKey == "" {
		s.StorageKey = "appfun:auth:session"
	}
}

// ReviewConfig controls the under-review compliance mode: anonymous visitors
// on allow-listed paths are presented with a placeholder signed-in identity
// and no provider calls are made.
type ReviewConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Notice  string `env:"NOTICE"  envDefault:"App is under review"`

	// AllowAnonymousPaths lists paths browsable without an account.
	// Entries ending in "/*" match any sub-path.
	AllowAnonymousPaths []string `env:"ALLOW_ANONYMOUS_PATHS" envSeparator:";" envDefault:"/;/about;/software;/software/*;/categories;/categories/*;/tags;/tags/*;/search"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"supabase"`

	// Supabase configuration (used when Mode=supabase).
	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`

	// Offline provider configuration (used when Mode=offline).
	Offline OfflineAuthConfig `envPrefix:"OFFLINE_AUTH_"`

	// Session lifetime policy.
	Session SessionConfig `envPrefix:"SESSION_"`

	// Review mode configuration.
	Review ReviewConfig `envPrefix:"REVIEW_"`
}

// Sanitize applies guardrails to authentication configuration values.
func (a *AuthConfig) Sanitize() {
	a.Session.Sanitize()
	if a.Supabase.RequestTimeout <= 0 {
		a.Supabase.RequestTimeout = 10 * time.Second
	}
}
