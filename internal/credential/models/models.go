package models

import (
	"time"

	id "campus-sso/pkg/domain"
)

// Owner identifies the scope a key belongs to: a user, or an application
// acting on its own behalf. Rotation revokes every active key in one scope.
type Owner struct {
	UserID        id.UserID
	ApplicationID id.ApplicationID
}

func UserOwner(userID id.UserID) Owner {
	return Owner{UserID: userID}
}

func ApplicationOwner(appID id.ApplicationID) Owner {
	return Owner{ApplicationID: appID}
}

// IsApplication reports whether the scope is an application rather than a user.
func (o Owner) IsApplication() bool {
	return o.UserID.IsNil() && !o.ApplicationID.IsNil()
}

func (o Owner) IsZero() bool {
	return o.UserID.IsNil() && o.ApplicationID.IsNil()
}

func (o Owner) String() string {
	if o.IsApplication() {
		return "application:" + o.ApplicationID.String()
	}
	return "user:" + o.UserID.String()
}

// APIKey is the stored form of a developer key. The plaintext is never kept;
// Lookup indexes the row and KeyHash verifies the secret half.
type APIKey struct {
	ID            id.APIKeyID      `json:"id"`
	Name          string           `json:"name"`
	Lookup        string           `json:"-"`
	KeyHash       string           `json:"-"`
	UserID        id.UserID        `json:"-"`
	ApplicationID id.ApplicationID `json:"-"`
	Revoked       bool             `json:"revoked"`
	CreatedAt     time.Time        `json:"created_at"`
	LastUsedAt    *time.Time       `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time       `json:"revoked_at,omitempty"`
}

func (k *APIKey) Owner() Owner {
	return Owner{UserID: k.UserID, ApplicationID: k.ApplicationID}
}

// OwnedBy reports whether k falls inside the rotation scope o.
func (k *APIKey) OwnedBy(o Owner) bool {
	if o.IsApplication() {
		return k.UserID.IsNil() && k.ApplicationID == o.ApplicationID
	}
	return !o.UserID.IsNil() && k.UserID == o.UserID
}

func (k *APIKey) IsActive() bool {
	return !k.Revoked
}

func (k *APIKey) Revoke(now time.Time) {
	if k.Revoked {
		return
	}
	k.Revoked = true
	k.RevokedAt = &now
}

func (k *APIKey) Touch(now time.Time) {
	k.LastUsedAt = &now
}

// IssuedKey is returned exactly once when a key is created or rotated.
type IssuedKey struct {
	Key     *APIKey `json:"key"`
	Secret  string  `json:"api_key"`
	Revoked int     `json:"revoked_count"`
}

// IssuedSecret is returned exactly once when a client secret is rotated.
type IssuedSecret struct {
	ClientID       string    `json:"client_id"`
	ClientSecret   string    `json:"client_secret"`
	RotatedAt      time.Time `json:"rotated_at"`
	RevokedAPIKeys int       `json:"revoked_api_keys"`
}
