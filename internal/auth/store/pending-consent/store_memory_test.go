package pendingconsent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

func newPending(hash string, now time.Time) *models.PendingConsent {
	return &models.PendingConsent{
		TokenHash:     hash,
		UserID:        id.NewUserID(),
		ApplicationID: id.NewApplicationID(),
		RedirectURI:   "https://app.example.edu/cb",
		Scopes:        []string{"email"},
		ResponseType:  models.ResponseTypeToken,
		State:         "xyz",
		CreatedAt:     now,
		ExpiresAt:     now.Add(10 * time.Minute),
	}
}

func TestConsume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("consumes exactly once", func(t *testing.T) {
		store := New()
		require.NoError(t, store.Create(ctx, newPending("h1", now)))

		record, err := store.Consume(ctx, "h1", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "xyz", record.State)

		_, err = store.Consume(ctx, "h1", now.Add(time.Minute))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired record is returned with ErrExpired and removed", func(t *testing.T) {
		store := New()
		require.NoError(t, store.Create(ctx, newPending("h2", now)))

		record, err := store.Consume(ctx, "h2", now.Add(10*time.Minute))
		assert.ErrorIs(t, err, sentinel.ErrExpired)
		require.NotNil(t, record)
		assert.Equal(t, "https://app.example.edu/cb", record.RedirectURI)

		_, err = store.Consume(ctx, "h2", now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("delete expired", func(t *testing.T) {
		store := New()
		require.NoError(t, store.Create(ctx, newPending("h3", now)))
		require.NoError(t, store.Create(ctx, newPending("h4", now.Add(time.Hour))))

		deleted, err := store.DeleteExpired(ctx, now.Add(15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})
}
