package httpx

import (
	"context"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.StoredSession) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.StoredSession, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.StoredSession); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context.
// Maintained for convenience; prefer GetUserSessionFromContext when you need presence info.
func GetSessionFromContext(ctx context.Context) *domainauth.StoredSession {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}

// CurrentUserFromContext returns the signed-in user carried by the request
// context, or nil when the request is anonymous.
func CurrentUserFromContext(ctx context.Context) *domainauth.User {
	s, ok := GetUserSessionFromContext(ctx)
	if !ok {
		return nil
	}
	user := s.User
	return &user
}
