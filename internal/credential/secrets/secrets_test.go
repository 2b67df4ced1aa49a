package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "campus-sso/pkg/domain-errors"
)

func TestGenerateProducesDistinctSecrets(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestHashAndVerify(t *testing.T) {
	secret, err := Generate()
	require.NoError(t, err)
	hash, err := Hash(secret)
	require.NoError(t, err)

	assert.NotEqual(t, secret, hash)
	assert.NoError(t, Verify(secret, hash))

	err = Verify("wrong", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Error(t, Verify(secret, ""))
}

func TestFingerprintIsStable(t *testing.T) {
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	assert.Len(t, Fingerprint("abc"), 64)

	token, fp, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(token), fp)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	key, err := NewAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key.Raw, APIKeyPrefix))

	lookup, secret, err := ParseAPIKey(key.Raw)
	require.NoError(t, err)
	assert.Equal(t, key.Lookup, lookup)
	assert.NoError(t, Verify(secret, key.Hash))
}

func TestParseAPIKeyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing prefix": "live_0123456789abcdef.secret",
		"missing secret": APIKeyPrefix + "0123456789abcdef.",
		"no separator":   APIKeyPrefix + "0123456789abcdef",
		"short lookup":   APIKeyPrefix + "0123.secret",
		"non-hex lookup": APIKeyPrefix + "zz23456789abcdef.secret",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseAPIKey(raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}
