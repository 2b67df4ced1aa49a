package revocation

import (
	"fmt"
	"time"

	"campus-sso/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

// admit decides whether a revocation must be stored. An empty jti has
// nothing to revoke; a blacklist entry always needs a positive lifetime,
// normally the remainder of the access token's validity.
func admit(jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, nil
	}
	if ttl <= 0 {
		return false, fmt.Errorf("revoke %s: ttl %s must be positive: %w", jti, ttl, sentinel.ErrInvalidState)
	}
	return true, nil
}
