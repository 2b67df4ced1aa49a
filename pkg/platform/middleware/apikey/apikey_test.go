package apikey

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/requestcontext"
)

type authenticatorFunc func(ctx context.Context, raw string) (*Principal, error)

func (f authenticatorFunc) AuthenticateKey(ctx context.Context, raw string) (*Principal, error) {
	return f(ctx, raw)
}

func TestRequireAPIKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keyID := id.NewAPIKeyID()
	appID := id.NewApplicationID()

	auth := authenticatorFunc(func(_ context.Context, raw string) (*Principal, error) {
		switch raw {
		case "sso_live_good":
			return &Principal{KeyID: keyID, UserID: id.NewUserID(), ApplicationID: appID}, nil
		case "sso_live_broken":
			return nil, errors.New("db down")
		default:
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
	})

	serve := func(key string, next http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/sdk/verify", nil)
		if key != "" {
			req.Header.Set(HeaderAPIKey, key)
		}
		rec := httptest.NewRecorder()
		RequireAPIKey(auth, logger)(next).ServeHTTP(rec, req)
		return rec
	}
	reject := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("handler must not run") })

	t.Run("missing key", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("", reject).Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("sso_live_nope", reject).Code)
	})

	t.Run("store failure", func(t *testing.T) {
		rec := serve("sso_live_broken", reject)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})

	t.Run("valid key populates context", func(t *testing.T) {
		var ctx context.Context
		rec := serve("sso_live_good", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx = r.Context()
			w.WriteHeader(http.StatusOK)
		}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, keyID, requestcontext.APIKeyID(ctx))
		assert.Equal(t, appID, requestcontext.ApplicationID(ctx))
	})
}
