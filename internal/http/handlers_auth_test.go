package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	mockauth "github.com/lacs-team/appfun-api/internal/mocks/auth"
	"github.com/lacs-team/appfun-api/internal/service"
)

// fakeAuthManager is a canned-response AuthManagerInterface.
type fakeAuthManager struct {
	signInResult         service.AuthResult
	signUpResult         service.AuthResult
	signOutResult        service.AuthResult
	resetPasswordResult  service.AuthResult
	updatePasswordResult service.AuthResult

	state      domainauth.State
	session    domainauth.StoredSession
	hasSession bool
	valid      bool
}

func (f *fakeAuthManager) SignIn(context.Context, string, string, service.SignInOptions) service.AuthResult {
	return f.signInResult
}

func (f *fakeAuthManager) SignUp(context.Context, string, string, string) service.AuthResult {
	return f.signUpResult
}

func (f *fakeAuthManager) SignOut(context.Context) service.AuthResult { return f.signOutResult }

func (f *fakeAuthManager) ResetPassword(context.Context, string) service.AuthResult {
	return f.resetPasswordResult
}

func (f *fakeAuthManager) UpdatePassword(context.Context, string) service.AuthResult {
	return f.updatePasswordResult
}

func (f *fakeAuthManager) GetState() domainauth.State { return f.state }

func (f *fakeAuthManager) CurrentSession() (domainauth.StoredSession, bool) {
	return f.session, f.hasSession
}

func (f *fakeAuthManager) IsValid(context.Context) bool { return f.valid }

func signedInManager() *fakeAuthManager {
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	user := domainauth.User{
		ID:         7,
		AuthUserID: "auth-user-1",
		Email:      "user@example.com",
		LoginTime:  now,
		ExpiresAt:  now.Add(24 * time.Hour),
		LoggedIn:   true,
	}
	return &fakeAuthManager{
		state:      domainauth.State{LoggedIn: true, User: &user},
		session:    domainauth.StoredSession{ID: "sess-1", User: user, LoginTime: now, ExpiresAt: user.ExpiresAt},
		hasSession: true,
		valid:      true,
	}
}

func TestAuthHandlers_SignIn(t *testing.T) {
	mgr := signedInManager()
	mgr.signInResult = service.AuthResult{Success: true}
	h := &AuthHandlers{Auth: mgr}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		strings.NewReader(`{"email":"user@example.com","password":"password1","rememberMe":true}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool             `json:"success"`
		User    *domainauth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user@example.com", resp.User.Email)
}

func TestAuthHandlers_SignIn_Failure(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{
		signInResult: service.AuthResult{Success: false, Message: "邮箱或密码错误，请检查后重试"},
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		strings.NewReader(`{"email":"user@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "邮箱或密码错误")
}

func TestAuthHandlers_SignIn_BadJSON(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{}}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestAuthHandlers_SignUp_ConfirmationRequired(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{
		signUpResult: service.AuthResult{Success: true, ConfirmationRequired: true, Message: "注册成功，请检查邮箱完成验证"},
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup",
		strings.NewReader(`{"email":"new@example.com","password":"password1","confirmPassword":"password1"}`))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp service.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ConfirmationRequired)
}

func TestAuthHandlers_SignOut_AlwaysSucceeds(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{signOutResult: service.AuthResult{Success: true}}}

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestAuthHandlers_Session_Anonymous(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{}}

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	h.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session":null,"user":null,"isLoggedIn":false}`, rec.Body.String())
}

func TestAuthHandlers_Session_LocalSession(t *testing.T) {
	h := &AuthHandlers{Auth: signedInManager()}

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()
	h.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsLoggedIn)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "sess-1", resp.Session.ID)
	require.NotNil(t, resp.User)
	assert.Equal(t, "auth-user-1", resp.User.AuthUserID)
}

func TestAuthHandlers_Session_ValidBearerToken(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	h := &AuthHandlers{Auth: &fakeAuthManager{}, Identity: provider}

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	h.Session(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsLoggedIn)
	require.NotNil(t, resp.User)
	assert.Equal(t, provider.DefaultIdentity.Email, resp.User.Email)
}

func TestAuthHandlers_Session_InvalidBearerToken(t *testing.T) {
	provider := mockauth.NewMockIdentityProvider()
	provider.GetUserFunc = func(context.Context, string) (domainauth.Identity, error) {
		return domainauth.Identity{}, assert.AnError
	}
	// A valid local session must not mask a rejected token.
	h := &AuthHandlers{Auth: signedInManager(), Identity: provider}

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	h.Session(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}

func TestAuthHandlers_User(t *testing.T) {
	h := &AuthHandlers{Auth: signedInManager()}

	rec := httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodGet, "/auth/user", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user@example.com")
}

func TestAuthHandlers_User_Anonymous(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{}}

	rec := httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodGet, "/auth/user", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestAuthHandlers_UpdatePassword_Failure(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{
		updatePasswordResult: service.AuthResult{Success: false, Message: "密码长度不能少于8位"},
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/update-password",
		strings.NewReader(`{"password":"short"}`))
	rec := httptest.NewRecorder()
	h.UpdatePassword(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "密码长度不能少于8位")
}

func TestAuthHandlers_Profile_RequiresContextSession(t *testing.T) {
	h := &AuthHandlers{Auth: &fakeAuthManager{}}

	rec := httptest.NewRecorder()
	h.Profile(rec, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sess := signedInManager().session
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req = req.WithContext(SetSessionInContext(req.Context(), &sess))
	rec = httptest.NewRecorder()
	h.Profile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth-user-1")
}
