//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/auth/store/revocation"
	"campus-sso/pkg/testutil/containers"
)

func TestRedisTRLIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	trl := revocation.NewRedisTRL(rc.Client)

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Second))
	revoked, err := trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = trl.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Eventually(t, func() bool {
		revoked, err := trl.IsRevoked(ctx, "jti-1")
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}

func TestPostgresTRLIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	trl := revocation.NewPostgresTRL(pg.DB, revocation.WithPostgresClock(clock))

	require.NoError(t, trl.RevokeToken(ctx, "jti-live", time.Hour))
	require.NoError(t, trl.RevokeToken(ctx, "jti-short", time.Minute))

	revoked, err := trl.IsRevoked(ctx, "jti-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := trl.DeleteExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	revoked, err = trl.IsRevoked(ctx, "jti-short")
	require.NoError(t, err)
	assert.False(t, revoked)
}
