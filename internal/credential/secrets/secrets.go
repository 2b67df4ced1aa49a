// Package secrets generates and verifies the opaque credentials handed out by
// the vault: client secrets, API keys, authorization codes, refresh tokens and
// consent tokens.
//
// Long-lived secrets are stored as bcrypt hashes. Short-lived bearer values
// (codes, refresh and consent tokens) are stored by SHA-256 fingerprint so
// they can be looked up directly.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "campus-sso/pkg/domain-errors"
)

// APIKeyPrefix marks every developer API key so leaked keys are recognisable.
const APIKeyPrefix = "sso_live_"

const lookupBytes = 8

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for use as API keys, client secrets, etc.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the provided secret.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if secret == "" || hash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid secret")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid secret")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}

// Fingerprint returns the hex SHA-256 digest used to index bearer values.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewOpaqueToken returns a fresh bearer value and its fingerprint.
func NewOpaqueToken() (token, fingerprint string, err error) {
	token, err = Generate()
	if err != nil {
		return "", "", err
	}
	return token, Fingerprint(token), nil
}

// APIKey is a freshly minted key. Raw is only ever returned to the caller once.
type APIKey struct {
	Raw    string
	Lookup string
	Hash   string
}

// NewAPIKey mints a key of the form sso_live_<lookup>.<secret>.
func NewAPIKey() (*APIKey, error) {
	buf := make([]byte, lookupBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("could not generate key lookup: %w", err)
	}
	lookup := hex.EncodeToString(buf)
	secret, err := Generate()
	if err != nil {
		return nil, err
	}
	hash, err := Hash(secret)
	if err != nil {
		return nil, err
	}
	return &APIKey{
		Raw:    APIKeyPrefix + lookup + "." + secret,
		Lookup: lookup,
		Hash:   hash,
	}, nil
}

// ParseAPIKey splits a raw key into its lookup and secret parts.
func ParseAPIKey(raw string) (lookup, secret string, err error) {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, APIKeyPrefix)
	if !ok {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	lookup, secret, ok = strings.Cut(rest, ".")
	if !ok || len(lookup) != lookupBytes*2 || secret == "" {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	if _, decodeErr := hex.DecodeString(lookup); decodeErr != nil {
		return "", "", dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	return lookup, secret, nil
}
