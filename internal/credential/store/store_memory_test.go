package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campus-sso/internal/credential/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

type APIKeyStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestAPIKeyStoreSuite(t *testing.T) {
	suite.Run(t, new(APIKeyStoreSuite))
}

func (s *APIKeyStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newKey(owner models.Owner, lookup string) *models.APIKey {
	return &models.APIKey{
		ID:            id.NewAPIKeyID(),
		Lookup:        lookup,
		KeyHash:       "hash-" + lookup,
		UserID:        owner.UserID,
		ApplicationID: owner.ApplicationID,
		CreatedAt:     time.Now(),
	}
}

func (s *APIKeyStoreSuite) TestLookups() {
	owner := models.UserOwner(id.NewUserID())
	key := newKey(owner, "aaaa")
	s.Require().NoError(s.store.Create(s.ctx, key))

	found, err := s.store.FindByLookup(s.ctx, "aaaa")
	s.Require().NoError(err)
	s.Equal(key.ID, found.ID)

	_, err = s.store.FindByLookup(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Create(s.ctx, newKey(owner, "aaaa")), sentinel.ErrConflict)
}

func (s *APIKeyStoreSuite) TestOwnerScopes() {
	appID := id.NewApplicationID()
	userID := id.NewUserID()
	appOwner := models.ApplicationOwner(appID)
	userOwner := models.UserOwner(userID)

	s.Require().NoError(s.store.Create(s.ctx, newKey(appOwner, "app1")))
	s.Require().NoError(s.store.Create(s.ctx, newKey(userOwner, "usr1")))
	// a user key that happens to be bound to the same application
	bound := newKey(userOwner, "usr2")
	bound.ApplicationID = appID
	s.Require().NoError(s.store.Create(s.ctx, bound))

	appKeys, err := s.store.ListActive(s.ctx, appOwner)
	s.Require().NoError(err)
	s.Len(appKeys, 1)

	userKeys, err := s.store.ListActive(s.ctx, userOwner)
	s.Require().NoError(err)
	s.Len(userKeys, 2)

	revoked, err := s.store.RevokeAll(s.ctx, appOwner, time.Now())
	s.Require().NoError(err)
	s.Equal(1, revoked)

	userKeys, err = s.store.ListActive(s.ctx, userOwner)
	s.Require().NoError(err)
	s.Len(userKeys, 2, "application rotation must not touch user keys")
}

func (s *APIKeyStoreSuite) TestRotateForOwner() {
	owner := models.ApplicationOwner(id.NewApplicationID())
	s.Require().NoError(s.store.Create(s.ctx, newKey(owner, "old1")))
	s.Require().NoError(s.store.Create(s.ctx, newKey(owner, "old2")))

	next := newKey(owner, "new1")
	revoked, err := s.store.RotateForOwner(s.ctx, owner, next, time.Now())
	s.Require().NoError(err)
	s.Equal(2, revoked)

	active, err := s.store.ListActive(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(next.ID, active[0].ID)

	old, err := s.store.FindByLookup(s.ctx, "old1")
	s.Require().NoError(err)
	s.True(old.Revoked)
	s.NotNil(old.RevokedAt)
}

func (s *APIKeyStoreSuite) TestConcurrentRotationsLeaveOneActiveKey() {
	owner := models.ApplicationOwner(id.NewApplicationID())
	const rotations = 20

	var wg sync.WaitGroup
	for i := range rotations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RotateForOwner(s.ctx, owner, newKey(owner, string(rune('a'+i))+"-key"), time.Now())
			s.NoError(err)
		}()
	}
	wg.Wait()

	active, err := s.store.ListActive(s.ctx, owner)
	s.Require().NoError(err)
	s.Len(active, 1)
}

func (s *APIKeyStoreSuite) TestRevokeAndTouch() {
	key := newKey(models.UserOwner(id.NewUserID()), "k1")
	s.Require().NoError(s.store.Create(s.ctx, key))

	now := time.Now()
	s.Require().NoError(s.store.TouchLastUsed(s.ctx, key.ID, now))
	s.Require().NoError(s.store.Revoke(s.ctx, key.ID, now))

	found, err := s.store.FindByID(s.ctx, key.ID)
	s.Require().NoError(err)
	s.True(found.Revoked)
	s.Require().NotNil(found.LastUsedAt)
	s.Equal(now, *found.LastUsedAt)

	s.ErrorIs(s.store.Revoke(s.ctx, id.NewAPIKeyID(), now), sentinel.ErrNotFound)
}
