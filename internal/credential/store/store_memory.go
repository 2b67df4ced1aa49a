package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campus-sso/internal/credential/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested key does not exist
// - Return ErrConflict when a lookup value collides
// - Return nil for successful operations

// InMemory keeps API keys in memory. RotateForOwner holds the write lock for
// the whole revoke-then-insert so readers never observe a partial rotation.
type InMemory struct {
	mu       sync.RWMutex
	keys     map[id.APIKeyID]*models.APIKey
	byLookup map[string]id.APIKeyID
}

func NewInMemory() *InMemory {
	return &InMemory{
		keys:     make(map[id.APIKeyID]*models.APIKey),
		byLookup: make(map[string]id.APIKeyID),
	}
}

func (s *InMemory) Create(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(key)
}

func (s *InMemory) insertLocked(key *models.APIKey) error {
	if _, ok := s.byLookup[key.Lookup]; ok {
		return fmt.Errorf("api key lookup collision: %w", sentinel.ErrConflict)
	}
	copied := *key
	s.keys[key.ID] = &copied
	s.byLookup[key.Lookup] = key.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
	}
	copied := *key
	return &copied, nil
}

func (s *InMemory) FindByLookup(_ context.Context, lookup string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keyID, ok := s.byLookup[lookup]
	if !ok {
		return nil, fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
	}
	copied := *s.keys[keyID]
	return &copied, nil
}

// ListActive returns non-revoked keys for owner, newest first.
func (s *InMemory) ListActive(_ context.Context, owner models.Owner) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, key := range s.keys {
		if key.IsActive() && key.OwnedBy(owner) {
			copied := *key
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Revoke(_ context.Context, keyID id.APIKeyID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID]
	if !ok {
		return fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
	}
	key.Revoke(now)
	return nil
}

func (s *InMemory) RevokeAll(_ context.Context, owner models.Owner, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeAllLocked(owner, now), nil
}

func (s *InMemory) revokeAllLocked(owner models.Owner, now time.Time) int {
	revoked := 0
	for _, key := range s.keys {
		if key.IsActive() && key.OwnedBy(owner) {
			key.Revoke(now)
			revoked++
		}
	}
	return revoked
}

// RotateForOwner revokes every active key in the owner's scope and stores next.
func (s *InMemory) RotateForOwner(_ context.Context, owner models.Owner, next *models.APIKey, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byLookup[next.Lookup]; ok {
		return 0, fmt.Errorf("api key lookup collision: %w", sentinel.ErrConflict)
	}
	revoked := s.revokeAllLocked(owner, now)
	if err := s.insertLocked(next); err != nil {
		return 0, err
	}
	return revoked, nil
}

func (s *InMemory) TouchLastUsed(_ context.Context, keyID id.APIKeyID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[keyID]
	if !ok {
		return fmt.Errorf("api key not found: %w", sentinel.ErrNotFound)
	}
	key.Touch(now)
	return nil
}
