package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/consent/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

func TestInMemorySaveMerges(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	userID, appID := id.NewUserID(), id.NewApplicationID()

	_, err := s.Find(ctx, userID, appID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Save(ctx, &models.Record{UserID: userID, ApplicationID: appID, Scopes: []string{"email", "profile"}, GrantedAt: time.Now()}))
	require.NoError(t, s.Save(ctx, &models.Record{UserID: userID, ApplicationID: appID, Scopes: []string{"profile"}, GrantedAt: time.Now()}))

	record, err := s.Find(ctx, userID, appID)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "profile"}, record.Scopes)

	records, err := s.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInMemoryRevoke(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	userID, appID := id.NewUserID(), id.NewApplicationID()

	require.ErrorIs(t, s.Revoke(ctx, userID, appID), sentinel.ErrNotFound)

	require.NoError(t, s.Save(ctx, &models.Record{UserID: userID, ApplicationID: appID, Scopes: []string{"email"}, GrantedAt: time.Now()}))
	require.NoError(t, s.Revoke(ctx, userID, appID))

	record, err := s.Find(ctx, userID, appID)
	require.NoError(t, err)
	assert.True(t, record.Revoked)
	assert.Equal(t, []string{"email"}, record.Scopes)

	require.NoError(t, s.Save(ctx, &models.Record{UserID: userID, ApplicationID: appID, Scopes: []string{"profile"}, GrantedAt: time.Now()}))
	record, err = s.Find(ctx, userID, appID)
	require.NoError(t, err)
	assert.False(t, record.Revoked)
	assert.Equal(t, []string{"email", "profile"}, record.Scopes)
}
