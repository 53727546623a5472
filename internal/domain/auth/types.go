package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Identity represents the authenticated principal returned by the identity
// provider. Adapters map provider-specific payloads into this shape.
type Identity struct {
	UserID           string // stable provider identifier (UUID string)
	Email            string
	Username         string
	FullName         string
	AvatarURL        string
	EmailConfirmedAt *time.Time
	AccessToken      string
	RefreshToken     string
	TokenExpiresAt   time.Time
}

// User is the signed-in account as the rest of the application sees it.
// A User is either fully populated with LoggedIn=true, or absent.
type User struct {
	ID          int64      `json:"id"`
	AuthUserID  string     `json:"auth_user_id"`
	Email       string     `json:"email"`
	Username    string     `json:"username,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LoginTime   time.Time  `json:"login_time"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LoggedIn    bool       `json:"logged_in"`
}

// State is the observable authentication state. Listeners receive a copy on
// every transition.
type State struct {
	LoggedIn bool   `json:"logged_in"`
	User     *User  `json:"user,omitempty"`
	Loading  bool   `json:"loading"`
	Err      string `json:"error,omitempty"`
}

// StoredSession is the self-describing record persisted by the session store.
// ID is an opaque session identifier (random UUID string).
type StoredSession struct {
	ID         string    `json:"id"`
	User       User      `json:"user"`
	LoginTime  time.Time `json:"login_time"`
	ExpiresAt  time.Time `json:"expires_at"`
	RememberMe bool      `json:"remember_me"`

	// Provider tokens, carried so restored sessions can still talk to the
	// identity provider. Absent for offline sessions restored from older
	// records.
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Valid reports whether the record passes the minimal shape check and has not
// expired. Records failing this check are discarded on restore.
func (s StoredSession) Valid(now time.Time) bool {
	if s.User.AuthUserID == "" || s.User.Email == "" {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Remaining returns the time left before expiry; negative when expired.
func (s StoredSession) Remaining(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// ReviewUser is the placeholder identity presented while the application is
// under review. It never reaches the identity provider or the database.
func ReviewUser(now time.Time) User {
	return User{
		ID:         0,
		AuthUserID: "review-mode-user",
		Email:      "review@example.com",
		Username:   "reviewer",
		FullName:   "Review Mode",
		CreatedAt:  now,
		UpdatedAt:  now,
		LoginTime:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
		LoggedIn:   true,
	}
}

// PathAllowed reports whether path matches the anonymous-access allow-list.
// Entries match exactly, except entries ending in "/*" which match the prefix
// and any sub-path.
func PathAllowed(path string, allowed []string) bool {
	for _, entry := range allowed {
		if prefix, ok := strings.CutSuffix(entry, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == entry {
			return true
		}
	}
	return false
}
