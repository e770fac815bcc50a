package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

func TestJSONCache(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file loads nothing", func(t *testing.T) {
		items, err := NewJSONCache(filepath.Join(t.TempDir(), "cache.json")).Load(ctx, "42")
		require.NoError(t, err)
		assert.Nil(t, items)
	})

	t.Run("save replaces the snapshot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		cache := NewJSONCache(path)

		require.NoError(t, cache.Save(ctx, "42", []domain.Item{{ID: "1"}}))
		require.NoError(t, cache.Save(ctx, "42", []domain.Item{{ID: "1"}, {ID: "2", Text: "hi", CreatedAt: "2024-01-01T00:00:00Z"}}))

		items, err := cache.Load(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, []domain.Item{{ID: "1"}, {ID: "2", Text: "hi", CreatedAt: "2024-01-01T00:00:00Z"}}, items)
	})

	t.Run("snapshot of another session loads nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		cache := NewJSONCache(path)
		require.NoError(t, cache.Save(ctx, "42", []domain.Item{{ID: "1"}}))

		items, err := cache.Load(ctx, "7")
		require.NoError(t, err)
		assert.Nil(t, items)

		items, err = cache.Load(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, []domain.Item{{ID: "1"}}, items)
	})

	t.Run("bare array files still load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":"9","text":"old"}]`), 0o600))

		items, err := NewJSONCache(path).Load(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, []domain.Item{{ID: "9", Text: "old"}}, items)
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

		_, err := NewJSONCache(path).Load(ctx, "42")
		assert.Error(t, err)
	})

	t.Run("open cache picks the file backend", func(t *testing.T) {
		backend, err := OpenCache(ctx, filepath.Join(t.TempDir(), "cache.json"), 0)
		require.NoError(t, err)
		_, ok := backend.(*JSONCache)
		assert.True(t, ok)
		assert.NoError(t, backend.Close())
	})
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "tweetsweep:cache:42", redisKey("42"))
}

func TestOpenCache_BadRedisURL(t *testing.T) {
	_, err := OpenCache(context.Background(), "redis://localhost:6379/notadb", 0)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping integration test")
	}
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	cache := NewRedisCacheWithClient(client, 0)
	defer cache.Close()

	session := "test-session"
	defer client.Del(ctx, redisKey(session))

	items, err := cache.Load(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, items)

	require.NoError(t, cache.Save(ctx, session, []domain.Item{{ID: "1", Text: "a"}}))
	items, err = cache.Load(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []domain.Item{{ID: "1", Text: "a"}}, items)
}
