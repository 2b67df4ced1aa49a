package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-sso/internal/credential/secrets"
)

const fixtureSeed = `
users:
  - email: asha@campus.edu
    password: hunter22
    name: Asha
applications:
  - client_id: library
    name: Library
    redirects: [https://library.campus.edu/callback]
    client_secret: library-secret
  - client_id: grades
    name: Grades
    redirects: [https://grades.campus.edu/callback]
`

func TestSeedStoresFillsInMemoryStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSeed), 0o600))
	stores := buildStores(&infrastructure{}, nil)
	var out bytes.Buffer

	err := seedStores(ctx, path, stores, &out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	user, err := stores.users.FindByEmail(ctx, "asha@campus.edu")
	require.NoError(t, err)
	assert.True(t, user.CheckPassword("hunter22"))

	library, err := stores.apps.FindByClientID(ctx, "library")
	require.NoError(t, err)
	assert.NoError(t, secrets.Verify("library-secret", library.ClientSecretHash))

	assert.Contains(t, out.String(), "client_id=grades client_secret=")
	assert.NotContains(t, out.String(), "library")
}

func TestSeedStoresMissingFile(t *testing.T) {
	stores := buildStores(&infrastructure{}, nil)
	err := seedStores(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), stores, io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
