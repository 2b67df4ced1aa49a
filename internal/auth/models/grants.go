package models

import (
	"fmt"
	"time"

	id "campus-sso/pkg/domain"
)

// ResponseType selects what the controller hands back to the relying party.
type ResponseType string

const (
	// ResponseTypeToken redirects with ?token=<access token>.
	ResponseTypeToken ResponseType = "token"
	// ResponseTypeCode redirects with ?code=<authorization code>.
	ResponseTypeCode ResponseType = "code"
)

// ParseResponseType falls back to def for empty or unknown input.
func ParseResponseType(raw string, def ResponseType) ResponseType {
	switch ResponseType(raw) {
	case ResponseTypeToken, ResponseTypeCode:
		return ResponseType(raw)
	}
	if def == "" {
		return ResponseTypeToken
	}
	return def
}

// PendingConsent parks an in-flight grant while the user decides. Only the
// SHA-256 of the consent token is stored.
type PendingConsent struct {
	TokenHash     string
	UserID        id.UserID
	ApplicationID id.ApplicationID
	RedirectURI   string
	Scopes        []string
	ResponseType  ResponseType
	State         string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (p *PendingConsent) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// AuthorizationCodeRecord is a single-use code bound to user, application,
// scopes and (optionally) the redirect it was issued for.
type AuthorizationCodeRecord struct {
	CodeHash      string
	UserID        id.UserID
	ApplicationID id.ApplicationID
	Scopes        []string
	RedirectURI   string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Used          bool
	UsedAt        *time.Time
}

// ValidateForConsume checks the record may be exchanged by appID at now.
func (c *AuthorizationCodeRecord) ValidateForConsume(appID id.ApplicationID, now time.Time) error {
	if c.Used {
		return fmt.Errorf("authorization code already used")
	}
	if !now.Before(c.ExpiresAt) {
		return fmt.Errorf("authorization code expired")
	}
	if c.ApplicationID != appID {
		return fmt.Errorf("authorization code issued to another application")
	}
	return nil
}

func (c *AuthorizationCodeRecord) MarkUsed(now time.Time) {
	c.Used = true
	c.UsedAt = &now
}

// RefreshTokenRecord is the server-side half of an opaque refresh token.
// Audience is the application id, or the portal audience for first-party logins.
type RefreshTokenRecord struct {
	TokenHash string
	UserID    id.UserID
	Audience  string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

func (r *RefreshTokenRecord) ValidateForConsume(now time.Time) error {
	if r.Revoked {
		return fmt.Errorf("refresh token revoked")
	}
	if !now.Before(r.ExpiresAt) {
		return fmt.Errorf("refresh token expired")
	}
	return nil
}
