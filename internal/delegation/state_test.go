package delegation

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("consume once", func(t *testing.T) {
		s := NewMemoryStateStore(time.Minute)
		require.NoError(t, s.Put(ctx, "state-1", "user-1", time.Minute))

		owner, ok, err := s.Consume(ctx, "state-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "user-1", owner)

		_, ok, err = s.Consume(ctx, "state-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expires", func(t *testing.T) {
		s := NewMemoryStateStore(time.Minute)
		require.NoError(t, s.Put(ctx, "state-1", "user-1", 10*time.Millisecond))

		time.Sleep(30 * time.Millisecond)

		_, ok, err := s.Consume(ctx, "state-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok, err := NewMemoryStateStore(0).Consume(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisStateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid url", func(t *testing.T) {
		_, err := OpenRedisStateStore(ctx, "not-a-redis-url")
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
			MaxRetries:  -1,
		})
		s := NewRedisStateStore(client)
		t.Cleanup(func() { s.Close() })

		assert.Error(t, s.Put(ctx, "state-1", "user-1", time.Minute))

		_, ok, err := s.Consume(ctx, "state-1")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("keys are namespaced", func(t *testing.T) {
		s := NewRedisStateStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
		t.Cleanup(func() { s.Close() })
		assert.Equal(t, "tunegate:oauth_state:abc", s.key("abc"))
	})
}
