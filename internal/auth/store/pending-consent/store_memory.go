package pendingconsent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-sso/internal/auth/models"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// - Return ErrNotFound when no pending consent matches the token fingerprint
// - Consume deletes the record whatever its state; an expired one comes back with ErrExpired
// - Return nil for successful operations

// InMemoryStore parks pending consents in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.Mutex
	pending map[string]*models.PendingConsent
}

func New() *InMemoryStore {
	return &InMemoryStore{pending: make(map[string]*models.PendingConsent)}
}

func (s *InMemoryStore) Create(_ context.Context, pending *models.PendingConsent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[pending.TokenHash]; exists {
		return fmt.Errorf("pending consent exists: %w", sentinel.ErrConflict)
	}
	stored := *pending
	s.pending[pending.TokenHash] = &stored
	return nil
}

// Consume removes the pending consent. Expired records are returned along
// with ErrExpired so callers can still redirect to the original target.
func (s *InMemoryStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.PendingConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.pending[tokenHash]
	if !ok {
		return nil, fmt.Errorf("pending consent not found: %w", sentinel.ErrNotFound)
	}
	delete(s.pending, tokenHash)

	if record.IsExpired(now) {
		return record, fmt.Errorf("pending consent expired: %w", sentinel.ErrExpired)
	}
	return record, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.pending {
		if record.IsExpired(now) {
			delete(s.pending, key)
			deleted++
		}
	}
	return deleted, nil
}
