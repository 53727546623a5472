package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
	"github.com/lacs-team/appfun-api/internal/service"
)

// AuthManagerInterface is the slice of the auth manager the handlers use.
type AuthManagerInterface interface {
	SignIn(ctx context.Context, email, password string, opts service.SignInOptions) service.AuthResult
	SignUp(ctx context.Context, email, password, confirm string) service.AuthResult
	SignOut(ctx context.Context) service.AuthResult
	ResetPassword(ctx context.Context, email string) service.AuthResult
	UpdatePassword(ctx context.Context, newPassword string) service.AuthResult
	GetState() domainauth.State
	CurrentSession() (domainauth.StoredSession, bool)
	IsValid(ctx context.Context) bool
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Auth     AuthManagerInterface
	Identity ports.IdentityProvider
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type signInRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type signInResponse struct {
	service.AuthResult
	User *domainauth.User `json:"user,omitempty"`
}

// SignIn handles credential sign-in.
// POST /auth/signin.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result := h.Auth.SignIn(r.Context(), req.Email, req.Password, service.SignInOptions{RememberMe: req.RememberMe})
	if !result.Success {
		WriteJSON(w, http.StatusUnauthorized, result)
		return
	}
	WriteJSON(w, http.StatusOK, signInResponse{AuthResult: result, User: h.Auth.GetState().User})
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SignUp handles account registration.
// POST /auth/signup.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result := h.Auth.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if !result.Success {
		WriteJSON(w, http.StatusBadRequest, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// SignOut handles sign-out. It always reports success: the local session is
// gone by the time the handler returns, whatever the provider thought of it.
// POST /auth/logout and DELETE /auth/session.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	result := h.Auth.SignOut(r.Context())
	if !result.Success {
		// SignOut never reports failure today; log if that ever changes.
		h.logger().WarnContext(r.Context(), "sign-out reported failure", "message", result.Message)
		result.Success = true
	}
	WriteJSON(w, http.StatusOK, result)
}

// sessionResponse is the GET /auth/session payload.
type sessionResponse struct {
	Session    *domainauth.StoredSession `json:"session"`
	User       *domainauth.User          `json:"user"`
	IsLoggedIn bool                      `json:"isLoggedIn"`
}

// Session reports the current session.
// GET /auth/session.
//
// A Bearer token, when presented, is verified against the identity provider;
// a token that fails verification is a 401 even when a local session exists.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.sessionFromToken(w, r, token)
		return
	}

	if !h.Auth.IsValid(r.Context()) {
		WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	sess, ok := h.Auth.CurrentSession()
	if !ok {
		WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	user := sess.User
	WriteJSON(w, http.StatusOK, sessionResponse{Session: &sess, User: &user, IsLoggedIn: true})
}

func (h *AuthHandlers) sessionFromToken(w http.ResponseWriter, r *http.Request, token string) {
	if h.Identity == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_token",
			Err:     errors.New("token verification unavailable"),
		})
		return
	}

	ident, err := authenticateBearer(r.Context(), h.Identity, token)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_token",
			Err:     errors.New("invalid or expired token"),
		})
		return
	}

	sess := sessionFromIdentity(ident, token)
	user := sess.User
	WriteJSON(w, http.StatusOK, sessionResponse{Session: sess, User: &user, IsLoggedIn: true})
}

// userResponse is the GET /auth/user payload.
type userResponse struct {
	User *domainauth.User `json:"user"`
}

// User reports the signed-in user, or null.
// GET /auth/user.
func (h *AuthHandlers) User(w http.ResponseWriter, r *http.Request) {
	if !h.Auth.IsValid(r.Context()) {
		WriteJSON(w, http.StatusOK, userResponse{})
		return
	}
	state := h.Auth.GetState()
	WriteJSON(w, http.StatusOK, userResponse{User: state.User})
}

type resetPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPassword triggers the provider's reset email flow.
// POST /auth/reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result := h.Auth.ResetPassword(r.Context(), req.Email)
	if !result.Success {
		WriteJSON(w, http.StatusBadRequest, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

// UpdatePassword changes the signed-in account's password.
// POST /auth/update-password (auth required).
func (h *AuthHandlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result := h.Auth.UpdatePassword(r.Context(), req.Password)
	if !result.Success {
		WriteJSON(w, http.StatusBadRequest, result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// Profile reports the session user carried by the request context.
// GET /auth/profile (auth required).
func (h *AuthHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	user := CurrentUserFromContext(r.Context())
	if user == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, userResponse{User: user})
}
