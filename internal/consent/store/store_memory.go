package store

import (
	"context"
	"fmt"
	"sync"

	"campus-sso/internal/consent/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when no consent exists for the pair
// - Return nil for successful operations

type pairKey struct {
	userID id.UserID
	appID  id.ApplicationID
}

// InMemory stores one consent record per (user, application).
type InMemory struct {
	mu      sync.RWMutex
	records map[pairKey]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[pairKey]*models.Record)}
}

func (s *InMemory) Find(_ context.Context, userID id.UserID, appID id.ApplicationID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[pairKey{userID: userID, appID: appID}]
	if !ok {
		return nil, fmt.Errorf("consent not found: %w", sentinel.ErrNotFound)
	}
	return clone(record), nil
}

// Save merges record into any stored consent for the same pair. The stored
// revoked flag is replaced by record's.
func (s *InMemory) Save(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID: record.UserID, appID: record.ApplicationID}
	stored := clone(record)
	if existing, ok := s.records[key]; ok {
		stored.Scopes = models.Union(existing.Scopes, record.Scopes)
	}
	s.records[key] = stored
	return nil
}

// Revoke flags the pair's consent as revoked, keeping its scopes.
func (s *InMemory) Revoke(_ context.Context, userID id.UserID, appID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[pairKey{userID: userID, appID: appID}]
	if !ok {
		return fmt.Errorf("consent not found: %w", sentinel.ErrNotFound)
	}
	record.Revoked = true
	return nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for key, record := range s.records {
		if key.userID == userID {
			out = append(out, clone(record))
		}
	}
	return out, nil
}

func clone(record *models.Record) *models.Record {
	copied := *record
	copied.Scopes = append([]string(nil), record.Scopes...)
	return &copied
}
