package redis

// Package redis provides the Redis-backed session store.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/lacs-team/appfun-api/internal/domain/auth"
	"github.com/lacs-team/appfun-api/internal/ports"
)

// SessionStore keeps the single durable session record in Redis under a fixed
// key. The record's TTL tracks its ExpiresAt, so Redis evicts stale sessions
// even if Clear is never called.
//
// The store is deliberately non-throwing: a Redis outage must never block
// sign-in or sign-out, so failures are logged and treated as "no session".
type SessionStore struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient
	// Key is the Redis key the session record lives under.
	Key    string
	Logger *slog.Logger
	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Key == "" {
		opts.Key = "appfun:auth:session"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionStore{
		client: opts.Client,
		key:    opts.Key,
		logger: opts.Logger,
		now:    opts.Now,
	}
}

// Load reads the persisted session. The second return is false when there is
// no record, the record fails to decode, the record is expired or malformed,
// or Redis is unreachable. Expired and malformed records are deleted on read.
func (s *SessionStore) Load(ctx context.Context) (domainauth.StoredSession, bool) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("session load failed", "key", s.key, "error", err)
		}
		return domainauth.StoredSession{}, false
	}

	var sess domainauth.StoredSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		s.logger.Warn("discarding undecodable session record", "key", s.key, "error", err)
		s.Clear(ctx)
		return domainauth.StoredSession{}, false
	}

	if !sess.Valid(s.now()) {
		s.Clear(ctx)
		return domainauth.StoredSession{}, false
	}

	return sess, true
}

// Save persists the session with a TTL matching its remaining lifetime.
// Already-expired sessions are not written.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.StoredSession) {
	ttl := sess.Remaining(s.now())
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(sess)
	if err != nil {
		s.logger.Warn("session marshal failed", "error", err)
		return
	}

	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		s.logger.Warn("session save failed", "key", s.key, "error", err)
	}
}

// Clear removes the persisted session record.
func (s *SessionStore) Clear(ctx context.Context) {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Warn("session clear failed", "key", s.key, "error", err)
	}
}
