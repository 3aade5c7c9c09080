package session_test

import (
	"civicportal/internal/session"
	"civicportal/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreCreateAndGet(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := session.NewRedisStore(client, "test-session:")
	ctx := context.Background()

	expires := time.Now().Add(30 * time.Minute)
	require.NoError(t, store.Create(ctx, "token-1", session.Session{UserID: 7, ExpiresAt: expires, CreatedAt: time.Now()}))

	sess, err := store.Get(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, uint(7), sess.UserID)
	assert.NotEmpty(t, sess.ID)
	assert.WithinDuration(t, expires, sess.ExpiresAt, time.Second)

	ttl, err := client.TTL(ctx, "test-session:"+hashOf("token-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 29*time.Minute)

	assert.Error(t, store.Create(ctx, "token-1", session.Session{UserID: 7, ExpiresAt: expires}), "create never overwrites")
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := session.NewRedisStore(client, "")

	err := store.Create(context.Background(), "token", session.Session{UserID: 1, ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestRedisStoreGetNonExistent(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := session.NewRedisStore(client, "")

	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStoreRevocation(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := session.NewRedisStore(client, "")
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for _, token := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, token, session.Session{UserID: 3, ExpiresAt: expires}))
	}

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, session.ErrNotFound)

	removed, err := store.DeleteByUser(ctx, 3, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestRedisStoreDeleteExpiredPrunesIndex(t *testing.T) {
	client := testutil.SetupRedis(t)
	store := session.NewRedisStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "short", session.Session{UserID: 9, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, client.Del(ctx, "session:"+hashOf("short")).Err())

	pruned, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	members, err := client.SMembers(ctx, "session:user:9").Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}
