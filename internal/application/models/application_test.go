package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
)

func TestNewApplication(t *testing.T) {
	now := time.Now()

	t.Run("dedupes redirect targets and defaults to token responses", func(t *testing.T) {
		app, err := NewApplication(id.NewApplicationID(), "library", "Library", "",
			[]string{"https://lib.campus.edu/cb", " ", "https://lib.campus.edu/cb"}, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://lib.campus.edu/cb"}, app.RedirectTargets)
		assert.Equal(t, "token", app.DefaultResponseType)
		assert.False(t, app.HasSecret())
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		_, err := NewApplication(id.NewApplicationID(), "", "Library", "https://lib.campus.edu", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewApplication(id.NewApplicationID(), "library", strings.Repeat("x", 129), "https://lib.campus.edu", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("requires somewhere to redirect", func(t *testing.T) {
		_, err := NewApplication(id.NewApplicationID(), "library", "Library", "", nil, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestAllowsRedirect(t *testing.T) {
	app := &Application{RedirectTargets: []string{"https://x.campus.edu/app"}}

	assert.True(t, app.AllowsRedirect("https://x.campus.edu/app/sub?foo=1"))
	assert.False(t, app.AllowsRedirect("https://evil.example/app"))

	fallback := &Application{BaseURL: "https://portal.campus.edu"}
	assert.True(t, fallback.AllowsRedirect("https://portal.campus.edu/home"))
}

func TestApplySecretRotation(t *testing.T) {
	app := &Application{}
	now := time.Now()
	app.ApplySecretRotation("hash", now)

	assert.True(t, app.HasSecret())
	require.NotNil(t, app.SecretRotatedAt)
	assert.Equal(t, now, *app.SecretRotatedAt)
}
