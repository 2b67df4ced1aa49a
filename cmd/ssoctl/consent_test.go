package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmodels "campus-sso/internal/application/models"
	appstore "campus-sso/internal/application/store"
	"campus-sso/internal/auth/models"
	userstore "campus-sso/internal/auth/store/user"
	consentservice "campus-sso/internal/consent/service"
	consentstore "campus-sso/internal/consent/store"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/sentinel"
)

func TestRevokeConsent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	users := userstore.New()
	user := &models.User{ID: id.NewUserID(), Email: "asha@campus.edu", Status: models.UserStatusActive, CreatedAt: now}
	require.NoError(t, users.Save(ctx, user))

	apps := appstore.NewInMemory()
	app, err := appmodels.NewApplication(id.NewApplicationID(), "library", "Library", "", []string{"https://library.campus.edu/callback"}, now)
	require.NoError(t, err)
	require.NoError(t, apps.Create(ctx, app))

	consents := consentservice.New(consentstore.NewInMemory())
	_, err = consents.GrantConsent(ctx, user.ID, app.ID, []string{"profile", "email"})
	require.NoError(t, err)

	t.Run("revoked consent no longer covers the grant", func(t *testing.T) {
		require.NoError(t, revokeConsent(ctx, users, apps, consents, "asha@campus.edu", "library"))

		covered, err := consents.HasConsent(ctx, user.ID, app.ID, []string{"profile"})
		require.NoError(t, err)
		assert.False(t, covered)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := revokeConsent(ctx, users, apps, consents, "nobody@campus.edu", "library")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown application", func(t *testing.T) {
		err := revokeConsent(ctx, users, apps, consents, "asha@campus.edu", "grades")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("no consent on record", func(t *testing.T) {
		other, err := appmodels.NewApplication(id.NewApplicationID(), "grades", "Grades", "", []string{"https://grades.campus.edu/callback"}, now)
		require.NoError(t, err)
		require.NoError(t, apps.Create(ctx, other))

		err = revokeConsent(ctx, users, apps, consents, "asha@campus.edu", "grades")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
