package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodedErrors(t *testing.T) {
	t.Run("wrapped errors keep their code through fmt wrapping", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := fmt.Errorf("exchange: %w", Wrap(cause, CodeInternal, "failed to load code"))

		assert.True(t, HasCode(err, CodeInternal))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("errors.Is matches on code and message", func(t *testing.T) {
		err := New(CodeInvalidGrant, "authorization code already used")
		require.ErrorIs(t, err, New(CodeInvalidGrant, "authorization code already used"))
		assert.NotErrorIs(t, err, New(CodeInvalidGrant, "authorization code expired"))
	})

	t.Run("uncoded errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Empty(t, MessageOf(errors.New("boom")))
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidClient:        http.StatusUnauthorized,
		CodeInvalidGrant:         http.StatusBadRequest,
		CodeInvalidRedirect:      http.StatusBadRequest,
		CodeUnsupportedGrantType: http.StatusBadRequest,
		CodeForbidden:            http.StatusForbidden,
		CodeNotFound:             http.StatusNotFound,
		CodeInternal:             http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, code.HTTPStatus(), string(code))
	}
}
