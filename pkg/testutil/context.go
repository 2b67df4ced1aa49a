package testutil

import (
	"net/http"
	"time"

	id "campus-sso/pkg/domain"
	"campus-sso/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, the way the bearer auth
// middleware does for authenticated requests. Invalid UUIDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithAccessToken adds a user, the token jti and its expiry.
func WithAccessToken(req *http.Request, userID, jti string, expiresAt time.Time) *http.Request {
	req = WithUserID(req, userID)
	return req.WithContext(requestcontext.WithToken(req.Context(), jti, expiresAt))
}

// WithAPIKey simulates the API key middleware.
func WithAPIKey(req *http.Request, keyID id.APIKeyID, appID id.ApplicationID) *http.Request {
	ctx := requestcontext.WithAPIKeyID(req.Context(), keyID)
	if !appID.IsNil() {
		ctx = requestcontext.WithApplicationID(ctx, appID)
	}
	return req.WithContext(ctx)
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
