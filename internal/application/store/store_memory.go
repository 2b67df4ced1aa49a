package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus-sso/internal/application/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a unique client_id is already registered
// - Return nil for successful operations
//
// Returned applications are copies; callers persist changes through Update.

type accessKey struct {
	userID id.UserID
	appID  id.ApplicationID
}

// InMemory stores applications and access rows for tests and local development.
type InMemory struct {
	mu         sync.RWMutex
	apps       map[id.ApplicationID]*models.Application
	byClientID map[string]id.ApplicationID
	access     map[accessKey]*models.Access
}

func NewInMemory() *InMemory {
	return &InMemory{
		apps:       make(map[id.ApplicationID]*models.Application),
		byClientID: make(map[string]id.ApplicationID),
		access:     make(map[accessKey]*models.Access),
	}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byClientID[app.ClientID]; ok {
		return fmt.Errorf("client_id %q already registered: %w", app.ClientID, sentinel.ErrConflict)
	}
	s.apps[app.ID] = cloneApplication(app)
	s.byClientID[app.ClientID] = app.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[appID]
	if !ok {
		return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	return cloneApplication(app), nil
}

func (s *InMemory) FindByClientID(_ context.Context, clientID string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appID, ok := s.byClientID[clientID]
	if !ok {
		return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	return cloneApplication(s.apps[appID]), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, cloneApplication(app))
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.apps[app.ID]
	if !ok {
		return fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	if existing.ClientID != app.ClientID {
		if _, taken := s.byClientID[app.ClientID]; taken {
			return fmt.Errorf("client_id %q already registered: %w", app.ClientID, sentinel.ErrConflict)
		}
		delete(s.byClientID, existing.ClientID)
		s.byClientID[app.ClientID] = app.ID
	}
	s.apps[app.ID] = cloneApplication(app)
	return nil
}

// EnsureAccess records the first time a user reaches an application and
// returns the current access row.
func (s *InMemory) EnsureAccess(_ context.Context, userID id.UserID, appID id.ApplicationID, now time.Time) (*models.Access, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	key := accessKey{userID: userID, appID: appID}
	row, ok := s.access[key]
	if !ok {
		row = &models.Access{UserID: userID, ApplicationID: appID, FirstAccessedAt: now}
		s.access[key] = row
	}
	copied := *row
	return &copied, nil
}

func (s *InMemory) FindAccess(_ context.Context, userID id.UserID, appID id.ApplicationID) (*models.Access, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.access[accessKey{userID: userID, appID: appID}]
	if !ok {
		return nil, fmt.Errorf("access not found: %w", sentinel.ErrNotFound)
	}
	copied := *row
	return &copied, nil
}

// SetAccessBlocked upserts the access row with the given blocked flag.
func (s *InMemory) SetAccessBlocked(_ context.Context, userID id.UserID, appID id.ApplicationID, blocked bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	key := accessKey{userID: userID, appID: appID}
	row, ok := s.access[key]
	if !ok {
		row = &models.Access{UserID: userID, ApplicationID: appID, FirstAccessedAt: now}
		s.access[key] = row
	}
	row.Blocked = blocked
	return nil
}

func cloneApplication(app *models.Application) *models.Application {
	copied := *app
	copied.RedirectTargets = append([]string(nil), app.RedirectTargets...)
	if app.SecretRotatedAt != nil {
		at := *app.SecretRotatedAt
		copied.SecretRotatedAt = &at
	}
	return &copied
}
