package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campus-sso/internal/application/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

type ApplicationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestApplicationStoreSuite(t *testing.T) {
	suite.Run(t, new(ApplicationStoreSuite))
}

func (s *ApplicationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ApplicationStoreSuite) newApp(clientID string) *models.Application {
	return &models.Application{
		ID:                  id.NewApplicationID(),
		ClientID:            clientID,
		Name:                "Library",
		RedirectTargets:     []string{"https://lib.campus.edu/cb"},
		DefaultResponseType: "token",
		CreatedAt:           time.Now(),
	}
}

func (s *ApplicationStoreSuite) TestLookups() {
	app := s.newApp("library")
	s.Require().NoError(s.store.Create(s.ctx, app))

	s.Run("finds by client id", func() {
		found, err := s.store.FindByClientID(s.ctx, "library")
		s.Require().NoError(err)
		s.Equal(app.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown ids", func() {
		_, err := s.store.FindByClientID(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByID(s.ctx, id.NewApplicationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a duplicate client id", func() {
		err := s.store.Create(s.ctx, s.newApp("library"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returned copies do not alias stored state", func() {
		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		found.RedirectTargets[0] = "https://evil.example"
		found.Blocked = true

		again, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal("https://lib.campus.edu/cb", again.RedirectTargets[0])
		s.False(again.Blocked)
	})
}

func (s *ApplicationStoreSuite) TestUpdate() {
	app := s.newApp("library")
	s.Require().NoError(s.store.Create(s.ctx, app))

	app.ApplySecretRotation("hash", time.Now())
	s.Require().NoError(s.store.Update(s.ctx, app))

	found, err := s.store.FindByClientID(s.ctx, "library")
	s.Require().NoError(err)
	s.Equal("hash", found.ClientSecretHash)
	s.NotNil(found.SecretRotatedAt)

	s.ErrorIs(s.store.Update(s.ctx, s.newApp("ghost")), sentinel.ErrNotFound)
}

func (s *ApplicationStoreSuite) TestAccess() {
	app := s.newApp("library")
	s.Require().NoError(s.store.Create(s.ctx, app))
	userID := id.NewUserID()
	first := time.Now().Add(-time.Hour)

	access, err := s.store.EnsureAccess(s.ctx, userID, app.ID, first)
	s.Require().NoError(err)
	s.False(access.Blocked)

	s.Run("keeps the first access time", func() {
		again, err := s.store.EnsureAccess(s.ctx, userID, app.ID, time.Now())
		s.Require().NoError(err)
		s.Equal(first, again.FirstAccessedAt)
	})

	s.Run("blocking is visible through FindAccess", func() {
		s.Require().NoError(s.store.SetAccessBlocked(s.ctx, userID, app.ID, true, time.Now()))
		found, err := s.store.FindAccess(s.ctx, userID, app.ID)
		s.Require().NoError(err)
		s.True(found.Blocked)
	})

	s.Run("unknown application", func() {
		_, err := s.store.EnsureAccess(s.ctx, userID, id.NewApplicationID(), time.Now())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
