package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`{"success":true}`)
	require.NoError(t, s.Set(ctx, "k", value, time.Minute))
	value[0] = 'X'

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"success":true}`, string(got))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	now = now.Add(2 * time.Minute)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))

	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStore_SetGet(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)

	_, ok, err := s.Get(ctx, "new-patients|x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "new-patients|x", []byte("payload"), time.Minute))
	assert.True(t, mr.Exists(KeyPrefix+"new-patients|x"))

	got, ok, err := s.Get(ctx, "new-patients|x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(got))
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL(KeyPrefix+"k"))

	mr.FastForward(31 * time.Second)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	s := NewRedisStore(client)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)
	mr.Close()

	_, _, err := s.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, "k", []byte("v"), time.Minute))
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	bare, err := NewRedisClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	bare.Close()
}
