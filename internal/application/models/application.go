package models

import (
	"strings"
	"time"

	"campus-sso/internal/redirect"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
)

// Application is a relying party registered with the SSO service.
//
// Invariants:
//   - ClientID is non-empty and unique across applications
//   - Name is non-empty and at most 128 characters
//   - RedirectTargets holds deduplicated, non-blank entries
//   - ClientSecretHash is a bcrypt hash and never serialized
type Application struct {
	ID                  id.ApplicationID `json:"id"`
	ClientID            string           `json:"client_id"`
	Name                string           `json:"name"`
	BaseURL             string           `json:"base_url,omitempty"`
	RedirectTargets     []string         `json:"redirect_targets"`
	ClientSecretHash    string           `json:"-"`
	DefaultResponseType string           `json:"response_type"`
	Blocked             bool             `json:"blocked"`
	CreatedAt           time.Time        `json:"created_at"`
	SecretRotatedAt     *time.Time       `json:"secret_rotated_at,omitempty"`
}

func NewApplication(appID id.ApplicationID, clientID, name, baseURL string, redirectTargets []string, now time.Time) (*Application, error) {
	clientID = strings.TrimSpace(clientID)
	name = strings.TrimSpace(name)
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client_id cannot be empty")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application name must be 128 characters or less")
	}
	targets := redirect.ParseEntries(strings.Join(redirectTargets, "\n"))
	if len(targets) == 0 && strings.TrimSpace(baseURL) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application needs a redirect target or base url")
	}
	return &Application{
		ID:                  appID,
		ClientID:            clientID,
		Name:                name,
		BaseURL:             strings.TrimSpace(baseURL),
		RedirectTargets:     targets,
		DefaultResponseType: "token",
		CreatedAt:           now,
	}, nil
}

// AllowedTargets returns the registered redirects, falling back to the base URL.
func (a *Application) AllowedTargets() []string {
	return redirect.AllowedTargets(a.RedirectTargets, a.BaseURL)
}

// AllowsRedirect reports whether candidate may receive tokens for this application.
func (a *Application) AllowsRedirect(candidate string) bool {
	return redirect.AllowedAny(candidate, a.AllowedTargets())
}

func (a *Application) IsBlocked() bool {
	return a.Blocked
}

// HasSecret reports whether confidential-client authentication is possible.
func (a *Application) HasSecret() bool {
	return a.ClientSecretHash != ""
}

// ApplySecretRotation records a new client secret hash.
func (a *Application) ApplySecretRotation(hash string, now time.Time) {
	a.ClientSecretHash = hash
	a.SecretRotatedAt = &now
}

// Access tracks a user's relationship with an application. A blocked access
// row denies the user even when their account is otherwise active.
type Access struct {
	UserID          id.UserID        `json:"user_id"`
	ApplicationID   id.ApplicationID `json:"app_id"`
	Blocked         bool             `json:"blocked"`
	FirstAccessedAt time.Time        `json:"first_accessed_at"`
}
