package authorizationcode

import (
	"fmt"
	"strings"

	"campus-sso/pkg/platform/sentinel"
)

// translateAuthCodeError converts domain errors from ValidateForConsume to sentinel errors.
func translateAuthCodeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrExpired)
	case strings.Contains(msg, "already used"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	}
}
