package user

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when another user already owns the email
// - Return nil for successful operations

// InMemoryUserStore keeps users in memory for tests and local development.
// Emails are matched case-insensitively.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// Save inserts or replaces a user.
func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	if owner, ok := s.byEmail[email]; ok && owner != user.ID {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	if existing, ok := s.users[user.ID]; ok {
		delete(s.byEmail, strings.ToLower(existing.Email))
	}
	copied := *user
	s.users[user.ID] = &copied
	s.byEmail[email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	copied := *s.users[userID]
	return &copied, nil
}
