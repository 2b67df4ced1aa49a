package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "campus-sso/pkg/domain-errors"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{"invalid_client is unauthorized", dErrors.New(dErrors.CodeInvalidClient, "client authentication failed"), http.StatusUnauthorized, "invalid_client", "client authentication failed"},
		{"invalid_grant is a bad request", dErrors.New(dErrors.CodeInvalidGrant, "authorization code expired"), http.StatusBadRequest, "invalid_grant", "authorization code expired"},
		{"redirect mismatch", dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri mismatch"), http.StatusBadRequest, "invalid_redirect", "redirect_uri mismatch"},
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "admin token required"), http.StatusForbidden, "forbidden", "admin token required"},
		{"wrapped code survives", fmt.Errorf("exchange: %w", dErrors.New(dErrors.CodeNotFound, "key not found")), http.StatusNotFound, "not_found", "key not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			body := decodeEnvelope(t, rr)
			assert.Equal(t, tt.code, body["error"])
			assert.Equal(t, tt.description, body["error_description"])
		})
	}

	t.Run("internal errors never carry a description", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteError(rr, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to sign token"))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeEnvelope(t, rr)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteError(rr, http.ErrHandlerTimeout)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "internal_error", decodeEnvelope(t, rr)["error"])
	})
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"key_id": "k1"})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"key_id":"k1"}`, rr.Body.String())
}
