package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacs-team/appfun-api/config"
	mockauth "github.com/lacs-team/appfun-api/internal/mocks/auth"
	"github.com/lacs-team/appfun-api/internal/service"
)

func newTestRouter(t *testing.T) (http.Handler, *mockauth.MockIdentityProvider) {
	t.Helper()

	provider := mockauth.NewMockIdentityProvider()
	manager := service.NewAuthManager(service.AuthManagerOptions{
		Provider: provider,
		Store:    mockauth.NewMemorySessionStore(),
		Session: config.SessionConfig{
			Duration:           24 * time.Hour,
			RememberMeDuration: 7 * 24 * time.Hour,
			RenewWithin:        24 * time.Hour,
		},
		Review: config.ReviewConfig{AllowAnonymousPaths: []string{"/", "/software", "/software/*"}},
	})

	repo := newMemInvitationRepo()
	repo.seed("WELCOME1", 1)
	invitations := service.NewInvitationService(service.InvitationServiceOptions{Repo: repo})

	router := NewRouter(RouterServices{
		Auth:        manager,
		Invitations: invitations,
		Identity:    provider,
		AdminAPIKey: "admin-key",
	})
	return router, provider
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SignInSessionSignOutFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	// Anonymous session check.
	rec := doJSON(t, router, http.MethodGet, "/auth/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isLoggedIn":false`)

	// Sign in.
	rec = doJSON(t, router, http.MethodPost, "/auth/signin",
		`{"email":"user@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Session now reports the signed-in user.
	rec = doJSON(t, router, http.MethodGet, "/auth/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.True(t, sess.IsLoggedIn)
	require.NotNil(t, sess.User)

	// Authenticated profile works without a bearer token.
	rec = doJSON(t, router, http.MethodGet, "/auth/profile", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Sign out is always a 200.
	rec = doJSON(t, router, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = doJSON(t, router, http.MethodGet, "/auth/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestRouter_DeleteSessionAliasesLogout(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/auth/signin",
		`{"email":"user@example.com","password":"password1"}`)

	rec := doJSON(t, router, http.MethodDelete, "/auth/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = doJSON(t, router, http.MethodGet, "/auth/session", "")
	assert.Contains(t, rec.Body.String(), `"isLoggedIn":false`)
}

func TestRouter_InvitationEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/validate-invitation", `{"code":"WELCOME1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doJSON(t, router, http.MethodPost, "/auth/use-invitation",
		`{"code":"WELCOME1","userId":"auth-user-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestRouter_AdminEndpointsRequireAPIKey(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/invitations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/generate-invitation", `{"max_uses":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/invitations", nil)
	req.Header.Set("X-API-Key", "admin-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRejectAnonymous(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/auth/profile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/update-password", `{"password":"password1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_SitemapUnconfigured(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/sitemap.xml", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_WakesRefresherOnTraffic(t *testing.T) {
	waker := &fakeWaker{}
	router := NewRouter(RouterServices{Refresher: waker})

	doJSON(t, router, http.MethodGet, "/healthz", "")
	doJSON(t, router, http.MethodGet, "/healthz", "")

	assert.Equal(t, int64(2), waker.wakes.Load())
}
