package refreshtoken

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// translateRefreshTokenError converts domain errors from ValidateForConsume to sentinel errors.
func translateRefreshTokenError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrExpired)
	case strings.Contains(msg, "revoked"):
		return fmt.Errorf("%s: %w", msg, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%s: %w", msg, sentinel.ErrInvalidState)
	}
}

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Consume deletes the row whatever its state; stale rows come back as ErrExpired or ErrAlreadyUsed
// - Return nil for successful operations

// InMemoryRefreshTokenStore stores refresh tokens in memory for tests/dev.
type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshTokenRecord
}

// New constructs an empty in-memory refresh token store.
func New() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, token *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenHash]; exists {
		return fmt.Errorf("refresh token exists: %w", sentinel.ErrConflict)
	}
	stored := *token
	s.tokens[token.TokenHash] = &stored
	return nil
}

// Consume removes the token and returns it if it was still valid.
func (s *InMemoryRefreshTokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	delete(s.tokens, tokenHash)

	if err := record.ValidateForConsume(now); err != nil {
		return nil, translateRefreshTokenError(err)
	}
	return record, nil
}

// RevokeAllForUser flags every outstanding token of the user.
func (s *InMemoryRefreshTokenStore) RevokeAllForUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, token := range s.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			revoked++
		}
	}
	return revoked, nil
}

// DeleteExpired removes tokens that expired as of now or were revoked.
func (s *InMemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletedCount := 0
	for key, token := range s.tokens {
		if token.Revoked || !now.Before(token.ExpiresAt) {
			delete(s.tokens, key)
			deletedCount++
		}
	}
	return deletedCount, nil
}
