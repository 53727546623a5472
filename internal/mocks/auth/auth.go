package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
)

// MockIdentityProvider simulates the identity provider for tests. Each
// method can be overridden with a func field; unset methods return the
// deterministic defaults.
type MockIdentityProvider struct {
	SignInFunc         func(ctx context.Context, email, password string) (domainauth.Identity, error)
	SignUpFunc         func(ctx context.Context, email, password, redirectTo string) (ports.SignUpResult, error)
	SignOutFunc        func(ctx context.Context, accessToken string) error
	GetUserFunc        func(ctx context.Context, accessToken string) (domainauth.Identity, error)
	UpdatePasswordFunc func(ctx context.Context, accessToken, newPassword string) error
	ResetPasswordFunc  func(ctx context.Context, email, redirectTo string) error

	// DefaultIdentity is returned by unset SignIn/SignUp/GetUser funcs.
	DefaultIdentity domainauth.Identity

	// Call counters for asserting interaction (or its absence).
	mu              sync.Mutex
	SignInCalls     int
	SignUpCalls     int
	SignOutCalls    int
	GetUserCalls    int
	UpdatePassCalls int
	ResetPassCalls  int
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	confirmed := time.Now().Add(-time.Hour)
	return &MockIdentityProvider{
		DefaultIdentity: domainauth.Identity{
			UserID:           "99999999-9999-9999-9999-999999999001",
			Email:            "mock.user@example.com",
			Username:         "mockuser",
			FullName:         "Mock User",
			EmailConfirmedAt: &confirmed,
			AccessToken:      "mock-access-token",
			RefreshToken:     "mock-refresh-token",
			TokenExpiresAt:   time.Now().Add(time.Hour),
		},
	}
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	m.count(&m.SignInCalls)
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	id := m.DefaultIdentity
	id.Email = email
	return id, nil
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, email, password, redirectTo string) (ports.SignUpResult, error) {
	m.count(&m.SignUpCalls)
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, email, password, redirectTo)
	}
	id := m.DefaultIdentity
	id.Email = email
	return ports.SignUpResult{Identity: id}, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	m.count(&m.SignOutCalls)
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockIdentityProvider) GetUser(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	m.count(&m.GetUserCalls)
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, accessToken)
	}
	id := m.DefaultIdentity
	id.AccessToken = accessToken
	return id, nil
}

func (m *MockIdentityProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	m.count(&m.UpdatePassCalls)
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, accessToken, newPassword)
	}
	return nil
}

func (m *MockIdentityProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	m.count(&m.ResetPassCalls)
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, redirectTo)
	}
	return nil
}

// Calls returns the total number of provider calls made.
func (m *MockIdentityProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SignInCalls + m.SignUpCalls + m.SignOutCalls + m.GetUserCalls + m.UpdatePassCalls + m.ResetPassCalls
}

func (m *MockIdentityProvider) count(c *int) {
	m.mu.Lock()
	*c++
	m.mu.Unlock()
}

// MemorySessionStore is an in-memory single-record session store for unit
// tests, honoring the non-throwing contract.
type MemorySessionStore struct {
	mu   sync.Mutex
	sess domainauth.StoredSession
	set  bool

	// Now is overridable for expiry checks on Load. Defaults to time.Now.
	Now func() time.Time

	// FailSaves silently drops writes, simulating an unavailable store.
	FailSaves bool
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{Now: time.Now}
}

func (m *MemorySessionStore) Load(_ context.Context) (domainauth.StoredSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set || !m.sess.Valid(m.Now()) {
		m.set = false
		return domainauth.StoredSession{}, false
	}
	return m.sess, true
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.StoredSession) {
	if m.FailSaves {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	m.set = true
}

func (m *MemorySessionStore) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = domainauth.StoredSession{}
	m.set = false
}

// Contains reports whether a record is currently stored, expiry aside.
func (m *MemorySessionStore) Contains() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set
}

// Seed stores a record directly, bypassing Save's failure simulation.
func (m *MemorySessionStore) Seed(sess domainauth.StoredSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	m.set = true
}
