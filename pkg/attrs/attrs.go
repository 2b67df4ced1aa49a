// Package attrs reads values back out of slog-style key/value lists so one
// attribute list can feed both the audit log line and the audit event.
package attrs

import (
	"fmt"

	id "campus-sso/pkg/domain"
)

// String returns the value logged under key, or "" when absent. Values that
// implement fmt.Stringer (ids, for instance) are rendered with String.
func String(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}

// UserID parses the "user_id" attribute. Missing or malformed values give
// the nil id.
func UserID(kv []any) id.UserID {
	userID, err := id.ParseUserID(String(kv, "user_id"))
	if err != nil {
		return id.UserID{}
	}
	return userID
}

// ApplicationID parses the "app_id" attribute.
func ApplicationID(kv []any) id.ApplicationID {
	appID, err := id.ParseApplicationID(String(kv, "app_id"))
	if err != nil {
		return id.ApplicationID{}
	}
	return appID
}
