package supabase

// Package supabase implements the identity provider against a Supabase
// GoTrue endpoint using its password-grant REST API.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
)

// audience GoTrue stamps into access tokens for signed-in users.
const tokenAudience = "authenticated"

// Provider implements ports.IdentityProvider against a GoTrue endpoint.
type Provider struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client

	// verifier checks bearer tokens against the project JWKS.
	verifier *gooidc.IDTokenVerifier
}

var _ ports.IdentityProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the Supabase provider.
type ProviderConfig struct {
	URL            string
	AnonKey        string
	RequestTimeout time.Duration // default 10s when zero
	JWKSPath       string        // default /auth/v1/.well-known/jwks.json
	HTTPClient     *http.Client  // optional, overrides RequestTimeout
}

// ProviderError is a GoTrue error response surfaced with its message text so
// callers can classify it (invalid credentials, unconfirmed email, rate
// limits).
type ProviderError struct {
	StatusCode int
	Message    string
}

// ProviderStatus exposes the HTTP status for callers that distinguish
// definitive rejections from transport failures without importing this
// package's concrete type.
func (e *ProviderError) ProviderStatus() int { return e.StatusCode }

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity provider returned status %d", e.StatusCode)
	}
	return e.Message
}

// NewProvider creates a Supabase identity provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.URL == "" {
		return nil, errors.New("supabase URL is required")
	}
	if config.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}

	baseURL := strings.TrimSuffix(config.URL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		// GoTrue sets auth cookies on some flows; keep them scoped correctly.
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	jwksPath := config.JWKSPath
	if jwksPath == "" {
		jwksPath = "/auth/v1/.well-known/jwks.json"
	}
	keySet := gooidc.NewRemoteKeySet(
		gooidc.ClientContext(context.Background(), httpClient),
		baseURL+jwksPath,
	)
	verifier := gooidc.NewVerifier(baseURL+"/auth/v1", keySet, &gooidc.Config{
		ClientID: tokenAudience,
	})

	return &Provider{
		baseURL:    baseURL,
		anonKey:    config.AnonKey,
		httpClient: httpClient,
		verifier:   verifier,
	}, nil
}

// tokenResponse is the GoTrue session payload returned by token-issuing
// endpoints (password grant, signup with autoconfirm).
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	User         *gotrueUser `json:"user"`
}

type gotrueUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	UserMetadata     struct {
		Username  string `json:"username"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if email == "" || password == "" {
		return domainauth.Identity{}, errors.New("email and password are required")
	}

	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	err := p.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return domainauth.Identity{}, errors.New("token response missing session")
	}

	return mapIdentity(resp.User, sessionToken(resp)), nil
}

func (p *Provider) SignUp(ctx context.Context, email, password, redirectTo string) (ports.SignUpResult, error) {
	if email == "" || password == "" {
		return ports.SignUpResult{}, errors.New("email and password are required")
	}

	path := "/auth/v1/signup"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	// GoTrue returns a bare user when email confirmation is pending and a
	// full session when autoconfirm is on; decode both shapes from one body.
	var raw json.RawMessage
	if err := p.doJSON(ctx, http.MethodPost, path, "", map[string]string{"email": email, "password": password}, &raw); err != nil {
		return ports.SignUpResult{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ports.SignUpResult{}, fmt.Errorf("decode signup response: %w", err)
	}
	if resp.AccessToken != "" && resp.User != nil {
		return ports.SignUpResult{Identity: mapIdentity(resp.User, sessionToken(resp))}, nil
	}

	var user gotrueUser
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return ports.SignUpResult{}, errors.New("signup response missing user")
	}
	return ports.SignUpResult{
		Identity:             mapIdentity(&user, nil),
		ConfirmationRequired: true,
	}, nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.New("access token is required")
	}
	return p.doJSON(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	if accessToken == "" {
		return domainauth.Identity{}, errors.New("access token is required")
	}

	var user gotrueUser
	if err := p.doJSON(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return domainauth.Identity{}, err
	}
	if user.ID == "" {
		return domainauth.Identity{}, errors.New("user response missing id")
	}

	identity := mapIdentity(&user, nil)
	identity.AccessToken = accessToken
	return identity, nil
}

func (p *Provider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if accessToken == "" {
		return errors.New("access token is required")
	}
	if newPassword == "" {
		return errors.New("new password is required")
	}
	return p.doJSON(ctx, http.MethodPut, "/auth/v1/user", accessToken, map[string]string{"password": newPassword}, nil)
}

func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if email == "" {
		return errors.New("email is required")
	}
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return p.doJSON(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// VerifyToken validates a bearer access token against the project JWKS and
// returns its verified claims.
func (p *Provider) VerifyToken(ctx context.Context, rawToken string) (*gooidc.IDToken, error) {
	token, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return token, nil
}

// AuthenticateBearer resolves the identity behind a bearer access token.
// The token is checked against the project JWKS first, so malformed or
// forged tokens are rejected without hitting the user endpoint.
func (p *Provider) AuthenticateBearer(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	if _, err := p.VerifyToken(ctx, rawToken); err != nil {
		return domainauth.Identity{}, err
	}
	return p.GetUser(ctx, rawToken)
}

// sessionToken converts the GoTrue session into an oauth2.Token so expiry
// math follows the standard library's clock handling.
func sessionToken(resp tokenResponse) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return tok
}

func mapIdentity(user *gotrueUser, token *oauth2.Token) domainauth.Identity {
	id := domainauth.Identity{
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.UserMetadata.Username,
		FullName:         user.UserMetadata.FullName,
		AvatarURL:        user.UserMetadata.AvatarURL,
		EmailConfirmedAt: user.EmailConfirmedAt,
	}
	if token != nil {
		id.AccessToken = token.AccessToken
		id.RefreshToken = token.RefreshToken
		id.TokenExpiresAt = token.Expiry
	}
	return id
}

// doJSON performs a GoTrue request. Non-2xx responses decode into
// *ProviderError; out may be nil when the caller only cares about status.
func (p *Provider) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.anonKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeProviderError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeProviderError maps the GoTrue error body shapes into a ProviderError.
func decodeProviderError(status int, data []byte) error {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorCode        string `json:"error"`
	}
	_ = json.Unmarshal(data, &payload)

	message := payload.ErrorDescription
	if message == "" {
		message = payload.Msg
	}
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = payload.ErrorCode
	}
	return &ProviderError{StatusCode: status, Message: message}
}
