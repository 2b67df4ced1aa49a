package authorizationcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrExpired / ErrAlreadyUsed / ErrInvalidState from Consume when the code cannot be exchanged
// - Return nil for successful operations
//

// InMemoryAuthorizationCodeStore stores authorization codes in memory for tests/dev.
// Records are keyed by the code fingerprint, never the raw code.
type InMemoryAuthorizationCodeStore struct {
	mu        sync.Mutex
	authCodes map[string]*models.AuthorizationCodeRecord
}

// New constructs an empty in-memory auth code store.
func New() *InMemoryAuthorizationCodeStore {
	return &InMemoryAuthorizationCodeStore{
		authCodes: make(map[string]*models.AuthorizationCodeRecord),
	}
}

func (s *InMemoryAuthorizationCodeStore) Create(_ context.Context, authCode *models.AuthorizationCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.authCodes[authCode.CodeHash]; exists {
		return fmt.Errorf("authorization code exists: %w", sentinel.ErrConflict)
	}
	stored := *authCode
	s.authCodes[authCode.CodeHash] = &stored
	return nil
}

// Consume validates and marks the code as used under a single lock, so
// concurrent exchanges of one code see exactly one success.
func (s *InMemoryAuthorizationCodeStore) Consume(_ context.Context, codeHash string, appID id.ApplicationID, now time.Time) (*models.AuthorizationCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.authCodes[codeHash]
	if !ok {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	if err := record.ValidateForConsume(appID, now); err != nil {
		return nil, translateAuthCodeError(err)
	}

	record.MarkUsed(now)
	consumed := *record
	return &consumed, nil
}

// DeleteExpired removes codes that expired as of now.
func (s *InMemoryAuthorizationCodeStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletedCount := 0
	for code, record := range s.authCodes {
		if !now.Before(record.ExpiresAt) {
			delete(s.authCodes, code)
			deletedCount++
		}
	}
	return deletedCount, nil
}
