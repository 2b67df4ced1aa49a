package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/httputil"
	"campus-sso/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token for application management routes.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose admin token does not match. An
// empty expected token disables the routes entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
