package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/httputil"
	"campus-sso/pkg/requestcontext"
)

// AccessVerifier validates a bearer access token end to end: signature,
// expiry, token type and blacklist membership.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*JWTClaims, error)
}

// JWTClaims represents the claims the middleware propagates into the context.
type JWTClaims struct {
	UserID string
	// Audience is the raw aud claim; ApplicationID carries the same value
	// and is only propagated when it parses as an application id.
	Audience      string
	ApplicationID string
	JTI           string
	Scopes        []string
	ExpiresAt     time.Time
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

func RequireAuth(verifier AccessVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := verifier.VerifyAccess(ctx, token)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
					return
				}
				logger.ErrorContext(ctx, "failed to verify access token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to validate token"))
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithToken(ctx, claims.JTI, claims.ExpiresAt)
			ctx = requestcontext.WithAudience(ctx, claims.Audience)
			// Portal tokens carry a non-uuid audience; only application audiences land in context.
			if appID, err := id.ParseApplicationID(claims.ApplicationID); err == nil {
				ctx = requestcontext.WithApplicationID(ctx, appID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAudience admits only tokens minted for audience. It must run after
// RequireAuth. Tokens a relying application received for its own audience
// are rejected, so they cannot reach first-party routes.
func RequireAudience(audience string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			got := requestcontext.Audience(ctx)
			if audience == "" || got != audience {
				logger.WarnContext(ctx, "forbidden - token audience mismatch",
					"audience", got,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token was not issued for this service"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
