package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	appmodels "campus-sso/internal/application/models"
	appstore "campus-sso/internal/application/store"
	"campus-sso/internal/credential/models"
	"campus-sso/internal/credential/secrets"
	keystore "campus-sso/internal/credential/store"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	audit "campus-sso/pkg/platform/audit"
	"campus-sso/pkg/platform/audit/publisher"
	auditmemory "campus-sso/pkg/platform/audit/store/memory"
)

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	p.events = append(p.events, event)
	return nil
}

type CredentialServiceSuite struct {
	suite.Suite
	ctx       context.Context
	apps      *appstore.InMemory
	keys      *keystore.InMemory
	publisher *recordingPublisher
	service   *Service
	app       *appmodels.Application
	secret    string
}

func TestCredentialServiceSuite(t *testing.T) {
	suite.Run(t, new(CredentialServiceSuite))
}

func (s *CredentialServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.apps = appstore.NewInMemory()
	s.keys = keystore.NewInMemory()
	s.publisher = &recordingPublisher{}
	s.service = New(s.keys, s.apps, WithAuditPublisher(s.publisher))

	secret, err := secrets.Generate()
	s.Require().NoError(err)
	hash, err := secrets.Hash(secret)
	s.Require().NoError(err)

	s.app = &appmodels.Application{
		ID:               id.NewApplicationID(),
		ClientID:         "library",
		Name:             "Library",
		RedirectTargets:  []string{"https://lib.campus.edu/cb"},
		ClientSecretHash: hash,
		CreatedAt:        time.Now(),
	}
	s.Require().NoError(s.apps.Create(s.ctx, s.app))
	s.secret = secret
}

func (s *CredentialServiceSuite) TestVerifyClientSecret() {
	s.Run("accepts the current secret", func() {
		app, err := s.service.VerifyClientSecret(s.ctx, "library", s.secret)
		s.Require().NoError(err)
		s.Equal(s.app.ID, app.ID)
	})

	cases := map[string][2]string{
		"wrong secret":   {"library", "nope"},
		"unknown client": {"unknown", s.secret},
		"empty secret":   {"library", ""},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			_, err := s.service.VerifyClientSecret(s.ctx, tc[0], tc[1])
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
			s.NotContains(err.Error(), s.app.ClientSecretHash)
		})
	}

	s.Run("applications without a secret cannot authenticate", func() {
		public := &appmodels.Application{ID: id.NewApplicationID(), ClientID: "public", Name: "Public", CreatedAt: time.Now()}
		s.Require().NoError(s.apps.Create(s.ctx, public))
		_, err := s.service.VerifyClientSecret(s.ctx, "public", "anything")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
	})
}

// Rotating twice invalidates the first secret and every application key
// issued before the second rotation.
func (s *CredentialServiceSuite) TestRotateClientSecretTwice() {
	first, err := s.service.RotateClientSecret(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal("library", first.ClientID)

	appKey, err := s.service.RotateKeys(s.ctx, models.ApplicationOwner(s.app.ID), "backend")
	s.Require().NoError(err)
	userKey, err := s.service.IssueUserKey(s.ctx, id.NewUserID(), "laptop")
	s.Require().NoError(err)

	second, err := s.service.RotateClientSecret(s.ctx, s.app.ID)
	s.Require().NoError(err)
	s.Equal(1, second.RevokedAPIKeys)
	s.NotEqual(first.ClientSecret, second.ClientSecret)

	_, err = s.service.VerifyClientSecret(s.ctx, "library", first.ClientSecret)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
	_, err = s.service.VerifyClientSecret(s.ctx, "library", s.secret)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
	_, err = s.service.VerifyClientSecret(s.ctx, "library", second.ClientSecret)
	s.NoError(err)

	_, err = s.service.AuthenticateKey(s.ctx, appKey.Secret)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.service.AuthenticateKey(s.ctx, userKey.Secret)
	s.NoError(err, "user keys are outside the application scope")

	s.Require().NotEmpty(s.publisher.events)
	last := s.publisher.events[len(s.publisher.events)-1]
	s.Equal(string(audit.EventClientSecretRotated), last.Action)
	s.Equal(s.app.ID, last.ApplicationID)
	s.Equal(audit.CategorySecurity, last.Category)
}

func (s *CredentialServiceSuite) TestRotateClientSecretUnknownApplication() {
	_, err := s.service.RotateClientSecret(s.ctx, id.NewApplicationID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CredentialServiceSuite) TestUserKeyLifecycle() {
	userID := id.NewUserID()
	owner := models.UserOwner(userID)

	first, err := s.service.IssueUserKey(s.ctx, userID, "laptop")
	s.Require().NoError(err)
	second, err := s.service.IssueUserKey(s.ctx, userID, "")
	s.Require().NoError(err)
	s.Equal("default", second.Key.Name)

	keys, err := s.service.ListKeys(s.ctx, owner)
	s.Require().NoError(err)
	s.Len(keys, 2)

	s.Run("authenticate records last use", func() {
		key, err := s.service.AuthenticateKey(s.ctx, first.Secret)
		s.Require().NoError(err)
		s.Equal(userID, key.UserID)
		stored, err := s.keys.FindByID(s.ctx, key.ID)
		s.Require().NoError(err)
		s.NotNil(stored.LastUsedAt)
	})

	s.Run("another user cannot revoke the key", func() {
		err := s.service.RevokeKey(s.ctx, models.UserOwner(id.NewUserID()), first.Key.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rotation revokes everything and returns one new key", func() {
		rotated, err := s.service.RotateKeys(s.ctx, owner, "rotated")
		s.Require().NoError(err)
		s.Equal(2, rotated.Revoked)

		keys, err := s.service.ListKeys(s.ctx, owner)
		s.Require().NoError(err)
		s.Require().Len(keys, 1)
		s.Equal(rotated.Key.ID, keys[0].ID)

		_, err = s.service.AuthenticateKey(s.ctx, first.Secret)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("owner revokes own key", func() {
		keys, err := s.service.ListKeys(s.ctx, owner)
		s.Require().NoError(err)
		s.Require().NoError(s.service.RevokeKey(s.ctx, owner, keys[0].ID))

		keys, err = s.service.ListKeys(s.ctx, owner)
		s.Require().NoError(err)
		s.Empty(keys)
	})
}

func (s *CredentialServiceSuite) TestAuthenticateKeyRejectsGarbage() {
	for _, raw := range []string{"", "sso_live_nothex", "Bearer abc", secrets.APIKeyPrefix + "0123456789abcdef.wrong"} {
		_, err := s.service.AuthenticateKey(s.ctx, raw)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), raw)
	}
}

func (s *CredentialServiceSuite) TestRotateKeysForUnknownApplication() {
	_, err := s.service.RotateKeys(s.ctx, models.ApplicationOwner(id.NewApplicationID()), "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CredentialServiceSuite) TestPrincipalAdapter() {
	issued, err := s.service.RotateKeys(s.ctx, models.ApplicationOwner(s.app.ID), "sdk")
	s.Require().NoError(err)

	principal, err := NewPrincipalAdapter(s.service).AuthenticateKey(s.ctx, issued.Secret)
	s.Require().NoError(err)
	s.Equal(s.app.ID, principal.ApplicationID)
	s.True(principal.UserID.IsNil())
}

type failingKeyStore struct {
	*keystore.InMemory
}

func (f failingKeyStore) RevokeAll(context.Context, models.Owner, time.Time) (int, error) {
	return 0, errors.New("store unavailable")
}

func (s *CredentialServiceSuite) TestRotateClientSecretSurfacesStoreFailure() {
	service := New(failingKeyStore{keystore.NewInMemory()}, s.apps)
	_, err := service.RotateClientSecret(s.ctx, s.app.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestIssueUserKeyIsAudited(t *testing.T) {
	ctx := context.Background()
	auditStore := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(auditStore)
	service := New(keystore.NewInMemory(), appstore.NewInMemory(), WithAuditPublisher(pub))

	userID := id.NewUserID()
	_, err := service.IssueUserKey(ctx, userID, "ci")
	require.NoError(t, err)

	events, err := auditStore.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventAPIKeyCreated), events[0].Action)
}
