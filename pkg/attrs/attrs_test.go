package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "campus-sso/pkg/domain"
)

func TestString(t *testing.T) {
	appID := id.NewApplicationID()
	kv := []any{"email", "ada@campus.edu", "app_id", appID, "count", 3, "dangling"}

	assert.Equal(t, "ada@campus.edu", String(kv, "email"))
	assert.Equal(t, appID.String(), String(kv, "app_id"))
	assert.Empty(t, String(kv, "count"))
	assert.Empty(t, String(kv, "dangling"))
	assert.Empty(t, String(kv, "missing"))
}

func TestIDs(t *testing.T) {
	userID := id.NewUserID()
	kv := []any{"user_id", userID.String(), "app_id", "not-a-uuid"}

	assert.Equal(t, userID, UserID(kv))
	assert.True(t, ApplicationID(kv).IsNil())
}
