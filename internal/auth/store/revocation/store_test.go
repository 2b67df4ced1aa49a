package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/platform/metrics"
	"campus-sso/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	trl := NewInMemoryTRL(WithMemoryClock(clock))

	t.Run("unknown jti is not revoked", func(t *testing.T) {
		revoked, err := trl.IsRevoked(ctx, "unknown")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("revoked jti is reported until its ttl elapses", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(2 * time.Minute)
		revoked, err = trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		err := trl.RevokeToken(ctx, "jti-2", 0)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("delete expired purges stale entries", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-3", time.Second))
		require.NoError(t, trl.RevokeToken(ctx, "jti-4", time.Hour))

		deleted, err := trl.DeleteExpired(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})
}

func TestRedisTRL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	trl := NewRedisTRL(client, WithRedisMetrics(metrics.New(prometheus.NewRegistry())))

	t.Run("revoke then check", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
		assert.True(t, mr.Exists(revokedTokenKeyPrefix+"jti-1"))
	})

	t.Run("entry expires with the token", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-2", time.Minute))
		mr.FastForward(2 * time.Minute)

		revoked, err := trl.IsRevoked(ctx, "jti-2")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("empty jti is never revoked", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "", time.Minute))
		revoked, err := trl.IsRevoked(ctx, "")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("redis failure surfaces as error", func(t *testing.T) {
		mr.SetError("boom")
		defer mr.SetError("")

		_, err := trl.IsRevoked(ctx, "jti-1")
		assert.Error(t, err)
	})
}
