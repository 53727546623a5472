package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Waker is anything that wants to know a user is active right now. The
// session refresh runner uses it to pull the next refresh forward instead
// of waiting out its interval.
type Waker interface {
	Wake()
}

// Activity returns a middleware that signals the Waker on every request.
// Wake is non-blocking and coalescing, so calling it per request is cheap.
func Activity(waker Waker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if waker == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			waker.Wake()
			next.ServeHTTP(w, r)
		})
	}
}

// AuthState is the slice of the auth manager the middleware needs.
type AuthState interface {
	CurrentSession() (domainauth.StoredSession, bool)
	IsValid(ctx context.Context) bool
	UnderReview(path string, query url.Values) bool
	ReviewState() domainauth.State
}

// RequireAuth returns a middleware that requires an authenticated caller.
//
// Precedence: a Bearer token, when presented, is resolved against the
// identity provider; then the manager's own session is consulted; finally,
// review mode admits the request with the placeholder review identity.
// Anything else gets 401.
func RequireAuth(auth AuthState, identity ports.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := resolveSession(r, auth, identity)
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth returns a middleware that attaches the session when one can be
// resolved and lets the request through either way.
func OptionalAuth(auth AuthState, identity ports.IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session, ok := resolveSession(r, auth, identity); ok {
				r = r.WithContext(SetSessionInContext(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuthenticator is implemented by providers that can verify a bearer
// token locally (against a JWKS) before resolving the user behind it.
type bearerAuthenticator interface {
	AuthenticateBearer(ctx context.Context, token string) (domainauth.Identity, error)
}

// authenticateBearer resolves the identity behind a bearer token, preferring
// local token verification when the provider supports it.
func authenticateBearer(ctx context.Context, identity ports.IdentityProvider, token string) (domainauth.Identity, error) {
	if v, ok := identity.(bearerAuthenticator); ok {
		return v.AuthenticateBearer(ctx, token)
	}
	return identity.GetUser(ctx, token)
}

// resolveSession produces the effective session for a request, or false when
// the request is anonymous.
func resolveSession(r *http.Request, auth AuthState, identity ports.IdentityProvider) (*domainauth.StoredSession, bool) {
	if token := bearerToken(r); token != "" && identity != nil {
		ident, err := authenticateBearer(r.Context(), identity, token)
		if err != nil {
			return nil, false
		}
		return sessionFromIdentity(ident, token), true
	}

	if auth == nil {
		return nil, false
	}

	if auth.IsValid(r.Context()) {
		if sess, ok := auth.CurrentSession(); ok {
			return &sess, true
		}
	}

	if auth.UnderReview(r.URL.Path, r.URL.Query()) {
		state := auth.ReviewState()
		if state.User != nil {
			return &domainauth.StoredSession{
				ID:        "review",
				User:      *state.User,
				LoginTime: state.User.LoginTime,
				ExpiresAt: state.User.ExpiresAt,
			}, true
		}
	}

	return nil, false
}

// bearerToken extracts the Bearer credential from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// sessionFromIdentity builds an ephemeral session for a token-authenticated
// request. It is never persisted; the token's own expiry bounds it.
func sessionFromIdentity(ident domainauth.Identity, token string) *domainauth.StoredSession {
	now := time.Now()
	expires := ident.TokenExpiresAt
	if expires.IsZero() {
		expires = now.Add(time.Hour)
	}
	return &domainauth.StoredSession{
		ID: "bearer",
		User: domainauth.User{
			AuthUserID:  ident.UserID,
			Email:       ident.Email,
			Username:    ident.Username,
			FullName:    ident.FullName,
			AvatarURL:   ident.AvatarURL,
			ConfirmedAt: ident.EmailConfirmedAt,
			LoginTime:   now,
			ExpiresAt:   expires,
			LoggedIn:    true,
		},
		LoginTime:   now,
		ExpiresAt:   expires,
		AccessToken: token,
	}
}

// RequireAPIKey returns a middleware that gates admin endpoints behind a
// shared X-API-Key header. An empty configured key disables the endpoints
// entirely rather than leaving them open.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.Header.Get("X-API-Key") != key {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "invalid_api_key",
					Err:     errors.New("invalid or missing API key"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
