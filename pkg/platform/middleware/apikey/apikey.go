// Package apikey authenticates relying-party backends by the key they send
// in the X-API-Key header.
package apikey

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/httputil"
	"campus-sso/pkg/requestcontext"
)

const HeaderAPIKey = "X-API-Key"

// Principal is the owner a presented key resolves to. ApplicationID is nil
// for user-scoped keys.
type Principal struct {
	KeyID         id.APIKeyID
	UserID        id.UserID
	ApplicationID id.ApplicationID
}

// Authenticator verifies a raw key and records its use.
type Authenticator interface {
	AuthenticateKey(ctx context.Context, rawKey string) (*Principal, error)
}

// RequireAPIKey rejects requests without a valid, unrevoked key. On success
// the key id and its bound application (if any) are stored in the context.
func RequireAPIKey(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			raw := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
			if raw == "" {
				logger.WarnContext(ctx, "api key missing", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "API key required"))
				return
			}

			principal, err := authenticator.AuthenticateKey(ctx, raw)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "api key rejected", "request_id", requestID)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid API key"))
					return
				}
				logger.ErrorContext(ctx, "failed to authenticate api key",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to authenticate API key"))
				return
			}

			ctx = requestcontext.WithAPIKeyID(ctx, principal.KeyID)
			if !principal.ApplicationID.IsNil() {
				ctx = requestcontext.WithApplicationID(ctx, principal.ApplicationID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
