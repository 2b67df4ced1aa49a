package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/platform/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url means not configured", func(t *testing.T) {
		c, err := New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := New(ctx, config.RedisConfig{URL: "://nope"})
		require.Error(t, err)
	})

	t.Run("connects and reports health", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := New(ctx, config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		assert.NoError(t, c.Health(ctx))
	})
}

func TestOptions(t *testing.T) {
	t.Run("config overrides pool settings", func(t *testing.T) {
		opts, err := options(config.RedisConfig{
			URL:          "redis://localhost:6379/2",
			PoolSize:     7,
			MinIdleConns: 2,
			ReadTimeout:  time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 7, opts.PoolSize)
		assert.Equal(t, 2, opts.MinIdleConns)
		assert.Equal(t, time.Second, opts.ReadTimeout)
	})

	t.Run("zero values keep the url defaults", func(t *testing.T) {
		base, err := options(config.RedisConfig{URL: "redis://localhost:6379?dial_timeout=3s"})
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, base.DialTimeout)
	})
}
