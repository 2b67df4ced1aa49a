package refreshtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	"campus-sso/pkg/platform/sentinel"
)

type RefreshTokenStoreSuite struct {
	suite.Suite
	store *InMemoryRefreshTokenStore
	now   time.Time
}

func (s *RefreshTokenStoreSuite) SetupTest() {
	s.store = New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestRefreshTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(RefreshTokenStoreSuite))
}

func (s *RefreshTokenStoreSuite) newRecord(hash string, userID id.UserID, expiresIn time.Duration) *models.RefreshTokenRecord {
	return &models.RefreshTokenRecord{
		TokenHash: hash,
		UserID:    userID,
		Audience:  "portal",
		Scopes:    []string{"profile"},
		CreatedAt: s.now,
		ExpiresAt: s.now.Add(expiresIn),
	}
}

func (s *RefreshTokenStoreSuite) TestConsumeIsSingleUse() {
	ctx := context.Background()
	userID := id.NewUserID()
	s.Require().NoError(s.store.Create(ctx, s.newRecord("hash-1", userID, time.Hour)))

	record, err := s.store.Consume(ctx, "hash-1", s.now)
	s.Require().NoError(err)
	s.Equal(userID, record.UserID)
	s.Equal("portal", record.Audience)

	_, err = s.store.Consume(ctx, "hash-1", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RefreshTokenStoreSuite) TestExpiredTokenIsDeletedAndRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRecord("hash-old", id.NewUserID(), time.Minute)))

	_, err := s.store.Consume(ctx, "hash-old", s.now.Add(time.Hour))
	s.ErrorIs(err, sentinel.ErrExpired)

	_, err = s.store.Consume(ctx, "hash-old", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RefreshTokenStoreSuite) TestRevokeAllForUser() {
	ctx := context.Background()
	alice := id.NewUserID()
	bob := id.NewUserID()
	s.Require().NoError(s.store.Create(ctx, s.newRecord("alice-1", alice, time.Hour)))
	s.Require().NoError(s.store.Create(ctx, s.newRecord("alice-2", alice, time.Hour)))
	s.Require().NoError(s.store.Create(ctx, s.newRecord("bob-1", bob, time.Hour)))

	revoked, err := s.store.RevokeAllForUser(ctx, alice)
	s.Require().NoError(err)
	s.Equal(2, revoked)

	_, err = s.store.Consume(ctx, "alice-1", s.now)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	_, err = s.store.Consume(ctx, "bob-1", s.now)
	s.NoError(err)

	deleted, err := s.store.DeleteExpired(ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, deleted, "remaining revoked token is purged")
}
