package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lacs-team/appfun-api/config"
	"github.com/lacs-team/appfun-api/internal/core"
	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/domain/model"
	"github.com/lacs-team/appfun-api/internal/ports"
)

// AuthManagerOptions groups dependencies for AuthManager.
type AuthManagerOptions struct {
	// Provider may be nil when no identity provider is configured; every
	// provider-backed operation then fails closed with a clear message.
	Provider ports.IdentityProvider
	Store    ports.SessionStore

	// Profiles is optional; when present, sign-in resolves the internal
	// profile id best-effort.
	Profiles core.ProfileRepository

	Session config.SessionConfig
	Review  config.ReviewConfig
	Logger  *slog.Logger

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

// AuthManager owns the authentication state of the process: the current
// session, its persistence, subscriber notification, and the under-review
// override. It is constructed once at the composition root and injected
// everywhere; there is no ambient global instance.
//
// Provider calls run outside the lock. Each completion re-acquires the lock
// and checks the operation sequence counter so a completion that lost the
// race to a newer transition is discarded instead of clobbering state.
type AuthManager struct {
	provider ports.IdentityProvider
	store    ports.SessionStore
	profiles core.ProfileRepository
	cfg      config.SessionConfig
	review   config.ReviewConfig
	logger   *slog.Logger
	now      func() time.Time

	mu             sync.Mutex
	state          domainauth.State
	session        domainauth.StoredSession
	opSeq          uint64
	listeners      map[int]func(domainauth.State)
	nextListener   int
	reviewOverride bool
}

// AuthResult is the outcome of a state-changing auth operation. Message is
// user-facing; it is set on failure and on a few informative successes
// ("check your email").
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// ConfirmationRequired is set by SignUp when the account exists but the
	// provider wants the email confirmed before the first sign-in.
	ConfirmationRequired bool `json:"confirmation_required,omitempty"`
}

// SignInOptions carries per-sign-in knobs.
type SignInOptions struct {
	RememberMe bool
}

// NewAuthManager constructs a new AuthManager.
func NewAuthManager(opts AuthManagerOptions) *AuthManager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthManager{
		provider:  opts.Provider,
		store:     opts.Store,
		profiles:  opts.Profiles,
		cfg:       opts.Session,
		review:    opts.Review,
		logger:    opts.Logger,
		now:       opts.Now,
		listeners: make(map[int]func(domainauth.State)),
	}
}

// Initialize restores the persisted session and reconciles it with the
// provider. A provider failure keeps valid local state: the local record is
// authoritative when the remote is unreachable, so transient outages never
// flap users to logged-out. With neither local state nor a provider the
// state is logged out with a "provider unavailable" error.
func (m *AuthManager) Initialize(ctx context.Context) {
	now := m.now()

	var sess domainauth.StoredSession
	var restored bool
	if m.store != nil {
		sess, restored = m.store.Load(ctx)
	}

	if !restored {
		m.mu.Lock()
		m.opSeq++
		m.session = domainauth.StoredSession{}
		m.state = domainauth.State{LoggedIn: false}
		if m.provider == nil {
			m.state.Err = msgProviderMissing
		}
		m.notifyLocked()
		return
	}

	// Renew a session close to expiry so an active install does not lapse
	// between visits.
	if sess.Remaining(now) < m.cfg.RenewWithin {
		sess.ExpiresAt = now.Add(m.sessionDuration(sess.RememberMe))
		sess.User.ExpiresAt = sess.ExpiresAt
		if m.store != nil {
			m.store.Save(ctx, sess)
		}
	}

	m.mu.Lock()
	m.opSeq++
	seq := m.opSeq
	m.session = sess
	user := sess.User
	m.state = domainauth.State{LoggedIn: true, User: &user}
	m.notifyLocked()

	m.reconcile(ctx, seq, sess)
}

// reconcile checks the restored session's access token against the provider.
// Only a definitive rejection (the provider answered and said no) evicts the
// local session.
func (m *AuthManager) reconcile(ctx context.Context, seq uint64, sess domainauth.StoredSession) {
	if m.provider == nil || sess.User.AuthUserID == "" {
		return
	}

	accessToken := m.accessTokenFor(sess)
	if accessToken == "" {
		return
	}

	_, err := m.provider.GetUser(ctx, accessToken)
	if err == nil {
		return
	}
	if !isProviderRejection(err) {
		m.logger.Warn("session reconcile skipped, provider unreachable", "error", err)
		return
	}

	m.mu.Lock()
	if m.opSeq != seq {
		m.mu.Unlock()
		return
	}
	m.logger.Info("provider rejected restored session, signing out")
	m.signOutLocked(ctx)
}

// GetState returns a defensive copy of the current state.
func (m *AuthManager) GetState() domainauth.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// CurrentUser returns the signed-in user, or nil.
func (m *AuthManager) CurrentUser() *domainauth.User {
	st := m.GetState()
	return st.User
}

// IsLoggedIn reports whether the state is currently logged in. It does not
// enforce expiry; use IsValid for that.
func (m *AuthManager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LoggedIn
}

// SignIn authenticates against the provider and establishes a session.
// Provider failures are classified into fixed user-facing messages and leave
// the current state untouched.
func (m *AuthManager) SignIn(ctx context.Context, email, password string, opts SignInOptions) AuthResult {
	if m.provider == nil {
		return AuthResult{Message: msgProviderMissing}
	}
	if email == "" || password == "" {
		return AuthResult{Message: msgInvalidCredentials}
	}

	m.mu.Lock()
	start := m.opSeq
	m.mu.Unlock()

	identity, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return AuthResult{Message: translateProviderError(err, msgSignInFailed)}
	}

	profileID := m.resolveProfileID(ctx, identity)

	m.mu.Lock()
	if m.opSeq != start {
		m.mu.Unlock()
		return AuthResult{Message: msgSignInFailed}
	}
	m.opSeq++

	now := m.now()
	sess := m.buildSession(identity, profileID, now, opts.RememberMe)
	if m.store != nil {
		m.store.Save(ctx, sess)
	}
	m.session = sess
	user := sess.User
	m.state = domainauth.State{LoggedIn: true, User: &user}
	m.notifyLocked()

	return AuthResult{Success: true}
}

// SignUp registers a new account. Password must be within [8,16] characters
// and match its confirmation; violations are rejected before any remote
// call. The state stays logged out when the provider requires email
// confirmation.
func (m *AuthManager) SignUp(ctx context.Context, email, password, confirm string) AuthResult {
	if m.provider == nil {
		return AuthResult{Message: msgProviderMissing}
	}
	if !validEmailShape(email) {
		return AuthResult{Message: msgInvalidEmail}
	}
	if len(password) < 8 {
		return AuthResult{Message: msgPasswordTooShort}
	}
	if len(password) > 16 {
		return AuthResult{Message: msgPasswordTooLong}
	}
	if password != confirm {
		return AuthResult{Message: msgPasswordMismatch}
	}

	m.mu.Lock()
	start := m.opSeq
	m.mu.Unlock()

	result, err := m.provider.SignUp(ctx, email, password, "")
	if err != nil {
		return AuthResult{Message: translateProviderError(err, msgSignUpFailed)}
	}

	if result.ConfirmationRequired {
		return AuthResult{Success: true, ConfirmationRequired: true, Message: msgCheckYourEmail}
	}

	profileID := m.resolveProfileID(ctx, result.Identity)

	m.mu.Lock()
	if m.opSeq != start {
		m.mu.Unlock()
		return AuthResult{Success: true}
	}
	m.opSeq++

	now := m.now()
	sess := m.buildSession(result.Identity, profileID, now, false)
	if m.store != nil {
		m.store.Save(ctx, sess)
	}
	m.session = sess
	user := sess.User
	m.state = domainauth.State{LoggedIn: true, User: &user}
	m.notifyLocked()

	return AuthResult{Success: true}
}

// SignOut clears the persisted and in-memory session. The local logout
// always takes effect; a failing remote revocation is logged only.
func (m *AuthManager) SignOut(ctx context.Context) AuthResult {
	m.mu.Lock()
	accessToken := m.accessTokenFor(m.session)
	m.opSeq++
	m.signOutLocked(ctx)

	if m.provider != nil && accessToken != "" {
		if err := m.provider.SignOut(ctx, accessToken); err != nil {
			m.logger.Warn("remote sign-out failed", "error", err)
		}
	}
	return AuthResult{Success: true}
}

// signOutLocked clears store and memory and notifies. Caller holds the lock;
// it is released before returning.
func (m *AuthManager) signOutLocked(ctx context.Context) {
	if m.store != nil {
		m.store.Clear(ctx)
	}
	m.session = domainauth.StoredSession{}
	m.state = domainauth.State{LoggedIn: false}
	m.notifyLocked()
}

// ResetPassword triggers the provider's reset email flow.
func (m *AuthManager) ResetPassword(ctx context.Context, email string) AuthResult {
	if m.provider == nil {
		return AuthResult{Message: msgProviderMissing}
	}
	if !validEmailShape(email) {
		return AuthResult{Message: msgInvalidEmail}
	}
	if err := m.provider.ResetPasswordForEmail(ctx, email, ""); err != nil {
		return AuthResult{Message: translateProviderError(err, msgSignInFailed)}
	}
	return AuthResult{Success: true}
}

// UpdatePassword changes the signed-in account's password.
func (m *AuthManager) UpdatePassword(ctx context.Context, newPassword string) AuthResult {
	if m.provider == nil {
		return AuthResult{Message: msgProviderMissing}
	}
	if len(newPassword) < 8 {
		return AuthResult{Message: msgPasswordTooShort}
	}
	if len(newPassword) > 16 {
		return AuthResult{Message: msgPasswordTooLong}
	}

	m.mu.Lock()
	accessToken := m.accessTokenFor(m.session)
	m.mu.Unlock()
	if accessToken == "" {
		return AuthResult{Message: msgProviderMissing}
	}

	if err := m.provider.UpdatePassword(ctx, accessToken, newPassword); err != nil {
		return AuthResult{Message: translateProviderError(err, msgSignInFailed)}
	}
	return AuthResult{Success: true}
}

// IsValid reports whether the session is logged in and unexpired. Detecting
// expiry here signs the session out as a side effect; this lazy check plus
// the periodic refresh runner are the only expiry enforcement.
func (m *AuthManager) IsValid(ctx context.Context) bool {
	m.mu.Lock()
	if !m.state.LoggedIn {
		m.mu.Unlock()
		return false
	}
	if m.now().Before(m.session.ExpiresAt) {
		m.mu.Unlock()
		return true
	}
	m.opSeq++
	m.signOutLocked(ctx)
	return false
}

// Refresh re-stamps the session expiry and persists it, only while the
// session is currently valid. It never resurrects an expired session.
func (m *AuthManager) Refresh(ctx context.Context) error {
	m.mu.Lock()

	now := m.now()
	if !m.state.LoggedIn || !now.Before(m.session.ExpiresAt) {
		m.mu.Unlock()
		return nil
	}

	m.opSeq++
	m.session.ExpiresAt = now.Add(m.sessionDuration(m.session.RememberMe))
	m.session.User.ExpiresAt = m.session.ExpiresAt
	if m.store != nil {
		m.store.Save(ctx, m.session)
	}
	user := m.session.User
	m.state = domainauth.State{LoggedIn: true, User: &user}

	// synchronous like every other transition, so listeners observe
	// refresh and sign-out in the order they happened
	m.notifyLocked()
	return nil
}

// Subscribe registers a listener for state transitions and returns its
// unsubscribe function. Listeners receive the full state; a panicking
// listener is recovered and logged without affecting the others.
func (m *AuthManager) Subscribe(listener func(domainauth.State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SetReviewOverride toggles the local review override.
func (m *AuthManager) SetReviewOverride(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewOverride = on
}

// UnderReview reports whether the request should be treated as under review:
// the config flag, the under_review=true query marker, or the local override
// is set, AND the path matches the anonymous allow-list. No provider call is
// ever made on this path.
func (m *AuthManager) UnderReview(path string, query url.Values) bool {
	m.mu.Lock()
	override := m.reviewOverride
	m.mu.Unlock()

	flagged := m.review.Enabled || override || query.Get("under_review") == "true"
	if !flagged {
		return false
	}
	return domainauth.PathAllowed(path, m.review.AllowAnonymousPaths)
}

// ReviewState returns the synthetic logged-in state presented under review.
func (m *AuthManager) ReviewState() domainauth.State {
	user := domainauth.ReviewUser(m.now())
	return domainauth.State{LoggedIn: true, User: &user}
}

// CurrentSession returns a copy of the stored session and whether one is
// active.
func (m *AuthManager) CurrentSession() (domainauth.StoredSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.state.LoggedIn
}

func (m *AuthManager) sessionDuration(rememberMe bool) time.Duration {
	if rememberMe {
		return m.cfg.RememberMeDuration
	}
	return m.cfg.Duration
}

// buildSession maps a provider identity into a new session record.
func (m *AuthManager) buildSession(identity domainauth.Identity, profileID int64, now time.Time, rememberMe bool) domainauth.StoredSession {
	expiresAt := now.Add(m.sessionDuration(rememberMe))
	return domainauth.StoredSession{
		ID: uuid.New().String(),
		User: domainauth.User{
			ID:          profileID,
			AuthUserID:  identity.UserID,
			Email:       identity.Email,
			Username:    identity.Username,
			FullName:    identity.FullName,
			AvatarURL:   identity.AvatarURL,
			ConfirmedAt: identity.EmailConfirmedAt,
			CreatedAt:   now,
			UpdatedAt:   now,
			LoginTime:   now,
			ExpiresAt:   expiresAt,
			LoggedIn:    true,
		},
		LoginTime:    now,
		ExpiresAt:    expiresAt,
		RememberMe:   rememberMe,
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
	}
}

// resolveProfileID upserts the user profile and returns its internal id.
// Best-effort: any failure is logged and 0 returned.
func (m *AuthManager) resolveProfileID(ctx context.Context, identity domainauth.Identity) int64 {
	if m.profiles == nil || identity.UserID == "" {
		return 0
	}

	req := &model.UpsertProfileRequest{AuthUserID: identity.UserID}
	if identity.Username != "" {
		req.Username = &identity.Username
	}
	if identity.FullName != "" {
		req.FullName = &identity.FullName
	}
	if identity.AvatarURL != "" {
		req.AvatarURL = &identity.AvatarURL
	}

	profile, err := m.profiles.Upsert(ctx, req)
	if err != nil {
		m.logger.Warn("profile resolution failed", "auth_user_id", identity.UserID, "error", err)
		return 0
	}
	return profile.ID
}

func (m *AuthManager) accessTokenFor(sess domainauth.StoredSession) string {
	return sess.AccessToken
}

// notifyLocked snapshots listeners and state, releases the lock, and
// dispatches. Callers must hold the lock; it is released on return.
// Notification happens strictly after memory and store are updated.
func (m *AuthManager) notifyLocked() {
	listeners, snapshot := m.listenerSnapshotLocked()
	m.mu.Unlock()
	dispatch(m.logger, listeners, snapshot)
}

func (m *AuthManager) listenerSnapshotLocked() ([]func(domainauth.State), domainauth.State) {
	listeners := make([]func(domainauth.State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return listeners, copyState(m.state)
}

func dispatch(logger *slog.Logger, listeners []func(domainauth.State), st domainauth.State) {
	for _, l := range listeners {
		notifyOne(logger, l, st)
	}
}

// notifyOne invokes a single listener with panic isolation.
func notifyOne(logger *slog.Logger, listener func(domainauth.State), st domainauth.State) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("auth state listener panicked", "panic", r)
		}
	}()
	listener(copyState(st))
}

// copyState deep-copies State so callers can never mutate manager-owned
// memory through the returned value.
func copyState(st domainauth.State) domainauth.State {
	out := st
	if st.User != nil {
		user := *st.User
		out.User = &user
	}
	return out
}

// isProviderRejection reports whether the error is a definitive provider
// answer (as opposed to a transport failure).
func isProviderRejection(err error) bool {
	var carrier interface{ ProviderStatus() int }
	if !errors.As(err, &carrier) {
		return false
	}
	code := carrier.ProviderStatus()
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func validEmailShape(email string) bool {
	at := -1
	for i, r := range email {
		if r == '@' {
			if at >= 0 {
				return false
			}
			at = i
		}
		if r == ' ' || r == '\t' {
			return false
		}
	}
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	for i := range len(domain) {
		if domain[i] == '.' && i > 0 && i < len(domain)-1 {
			return true
		}
	}
	return false
}
