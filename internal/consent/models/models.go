package models

import (
	"time"

	"campus-sso/internal/scope"
	id "campus-sso/pkg/domain"
)

// Record is the consent a user has given one application. Scopes only ever
// widen: a new grant is merged with what is already stored, revoked or not,
// and clears Revoked.
type Record struct {
	UserID        id.UserID        `json:"user_id"`
	ApplicationID id.ApplicationID `json:"app_id"`
	Scopes        []string         `json:"scopes"`
	Revoked       bool             `json:"revoked"`
	GrantedAt     time.Time        `json:"granted_at"`
}

// Covers reports whether every requested scope has already been granted.
// A revoked record covers nothing but the empty request.
func (r *Record) Covers(requested []string) bool {
	if r == nil || r.Revoked {
		return len(scope.Normalize(requested)) == 0
	}
	return scope.Contains(r.Scopes, requested)
}

// Union merges two scope sets into the normalized stored form. It never
// drops a scope from existing.
func Union(existing, incoming []string) []string {
	merged := make([]string, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	return scope.Normalize(merged)
}
