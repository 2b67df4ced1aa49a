// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID so a user id cannot be passed where an
// application id is expected. Parse functions are the trust boundary for ids
// arriving from requests and reject empty, malformed and nil values.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "campus-sso/pkg/domain-errors"
)

type (
	UserID        uuid.UUID
	ApplicationID uuid.UUID
	APIKeyID      uuid.UUID
)

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id APIKeyID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id APIKeyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewAPIKeyID() APIKeyID           { return APIKeyID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

func ParseAPIKeyID(s string) (APIKeyID, error) {
	u, err := parseUUID(s, "api key id")
	return APIKeyID(u), err
}

// maxIDLength bounds input before handing it to the uuid parser.
const maxIDLength = 64

func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}
