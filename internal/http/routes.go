// Package httpx provides the JSON HTTP surface for the appfun auth backend.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/lacs-team/appfun-api/internal/ports"
	"github.com/lacs-team/appfun-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth        *service.AuthManager
	Invitations *service.InvitationService

	// Identity resolves Bearer tokens on stateless API calls. Optional;
	// without it token-authenticated requests are rejected.
	Identity ports.IdentityProvider

	// Sitemap is optional; without it /sitemap.xml is a 404.
	Sitemap *service.SitemapService

	// Refresher receives a wake signal on inbound traffic. Optional.
	Refresher Waker

	// AdminAPIKey gates invitation generation and listing. Empty disables
	// those endpoints.
	AdminAPIKey string

	CookieDomain string
	IsDev        bool         // Development mode flag
	Logger       *slog.Logger // Logger for HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Auth != nil {
		authHandlers := &AuthHandlers{
			Auth:     services.Auth,
			Identity: services.Identity,
			Logger:   services.Logger,
		}
		registerAuthRoutes(mux, authHandlers, services.Auth)
	}

	if services.Invitations != nil {
		invitationHandlers := &InvitationHandlers{Svc: services.Invitations, Logger: services.Logger}
		registerInvitationRoutes(mux, invitationHandlers, services.AdminAPIKey)
	}

	sitemapHandlers := &SitemapHandlers{Svc: services.Sitemap, Logger: services.Logger}
	mux.HandleFunc("GET /sitemap.xml", sitemapHandlers.Sitemap)

	// Wake the session refresher on any inbound traffic.
	return Activity(services.Refresher)(mux)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, auth AuthState) {
	mux.HandleFunc("POST /auth/signin", h.SignIn)
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/logout", h.SignOut)
	mux.HandleFunc("DELETE /auth/session", h.SignOut)
	mux.HandleFunc("GET /auth/session", h.Session)
	mux.HandleFunc("GET /auth/user", h.User)
	mux.HandleFunc("POST /auth/reset-password", h.ResetPassword)

	requireAuth := RequireAuth(auth, h.Identity)
	mux.Handle("POST /auth/update-password", requireAuth(http.HandlerFunc(h.UpdatePassword)))
	mux.Handle("GET /auth/profile", requireAuth(http.HandlerFunc(h.Profile)))
}

func registerInvitationRoutes(mux *http.ServeMux, h *InvitationHandlers, adminKey string) {
	mux.HandleFunc("POST /auth/validate-invitation", h.Validate)
	mux.HandleFunc("POST /auth/use-invitation", h.Use)

	requireKey := RequireAPIKey(adminKey)
	mux.Handle("POST /auth/generate-invitation", requireKey(http.HandlerFunc(h.Generate)))
	mux.Handle("GET /auth/invitations", requireKey(http.HandlerFunc(h.List)))
}
