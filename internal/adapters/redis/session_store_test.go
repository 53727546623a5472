package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacs-team/appfun-api/internal/testutil"
)

func TestSessionStore_SaveAndLoad(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	now := testutil.TestTime()
	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:save-load",
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()
	defer store.Clear(ctx)

	sess := testutil.NewSession().WithEmail("alice@example.com").Build()
	store.Save(ctx, sess)

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "alice@example.com", loaded.User.Email)
	assert.Equal(t, sess.User.AuthUserID, loaded.User.AuthUserID)
	assert.WithinDuration(t, sess.ExpiresAt, loaded.ExpiresAt, time.Second)
	assert.False(t, loaded.RememberMe)
}

func TestSessionStore_LoadMissing(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:missing",
	})

	_, ok := store.Load(context.Background())
	assert.False(t, ok)
}

func TestSessionStore_LoadExpired(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	now := testutil.TestTime()
	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:expired",
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()
	defer store.Clear(ctx)

	sess := testutil.NewSession().ExpiresIn(time.Minute).Build()
	store.Save(ctx, sess)

	// advance past expiry; the record is still in Redis but no longer valid
	now = now.Add(2 * time.Minute)

	_, ok := store.Load(ctx)
	assert.False(t, ok)

	// the expired record was removed on read
	exists, err := client.Exists(ctx, "appfun:test:session:expired").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestSessionStore_LoadMalformed(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:malformed",
	})
	ctx := context.Background()
	defer store.Clear(ctx)

	require.NoError(t, client.Set(ctx, "appfun:test:session:malformed", "{not json", time.Minute).Err())

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}

func TestSessionStore_SaveExpiredIsNoop(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	now := testutil.TestTime()
	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:noop",
		Now:    func() time.Time { return now.Add(48 * time.Hour) },
	})
	ctx := context.Background()

	store.Save(ctx, testutil.NewSession().Build())

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}

func TestSessionStore_Clear(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(SessionStoreOptions{
		Client: client,
		Key:    "appfun:test:session:clear",
	})
	ctx := context.Background()

	store.Save(ctx, testutil.NewSession().ExpiresIn(time.Hour).Build())
	store.Clear(ctx)

	_, ok := store.Load(ctx)
	assert.False(t, ok)
}
