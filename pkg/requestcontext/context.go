// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "campus-sso/pkg/domain"
)

type (
	userIDKey        struct{}
	applicationIDKey struct{}
	apiKeyIDKey      struct{}
	tokenIDKey       struct{}
	tokenExpiryKey   struct{}
	audienceKey      struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	deviceKey        struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// -----------------------------------------------------------------------------
// Auth context
// -----------------------------------------------------------------------------

// UserID returns the authenticated subject, or the nil id.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// ApplicationID returns the application bound to the caller (token audience
// or API key scope), or the nil id.
func ApplicationID(ctx context.Context) id.ApplicationID {
	if v, ok := ctx.Value(applicationIDKey{}).(id.ApplicationID); ok {
		return v
	}
	return id.ApplicationID{}
}

func WithApplicationID(ctx context.Context, appID id.ApplicationID) context.Context {
	return context.WithValue(ctx, applicationIDKey{}, appID)
}

// APIKeyID returns the API key that authenticated the request, if any.
func APIKeyID(ctx context.Context) id.APIKeyID {
	if v, ok := ctx.Value(apiKeyIDKey{}).(id.APIKeyID); ok {
		return v
	}
	return id.APIKeyID{}
}

func WithAPIKeyID(ctx context.Context, keyID id.APIKeyID) context.Context {
	return context.WithValue(ctx, apiKeyIDKey{}, keyID)
}

// TokenID returns the jti of the bearer token presented with the request.
func TokenID(ctx context.Context) string {
	if v, ok := ctx.Value(tokenIDKey{}).(string); ok {
		return v
	}
	return ""
}

// TokenExpiry returns the expiry of the bearer token presented with the request.
func TokenExpiry(ctx context.Context) time.Time {
	if v, ok := ctx.Value(tokenExpiryKey{}).(time.Time); ok {
		return v
	}
	return time.Time{}
}

func WithToken(ctx context.Context, jti string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, tokenIDKey{}, jti)
	return context.WithValue(ctx, tokenExpiryKey{}, expiresAt)
}

// Audience returns the aud claim of the bearer token, or "".
func Audience(ctx context.Context) string {
	if v, ok := ctx.Value(audienceKey{}).(string); ok {
		return v
	}
	return ""
}

func WithAudience(ctx context.Context, audience string) context.Context {
	return context.WithValue(ctx, audienceKey{}, audience)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// Device is a short "browser/os" summary derived from the User-Agent.
func Device(ctx context.Context) string {
	if v, ok := ctx.Value(deviceKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent and device summary.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, device string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return context.WithValue(ctx, deviceKey{}, device)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() outside
// HTTP requests (CLI, tests without injection).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
