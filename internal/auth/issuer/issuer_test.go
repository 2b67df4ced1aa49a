package issuer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	refreshtoken "campus-sso/internal/auth/store/refresh-token"
	"campus-sso/internal/auth/store/revocation"
	jwttoken "campus-sso/internal/jwt_token"
	"campus-sso/internal/platform/metrics"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
)

type IssuerSuite struct {
	suite.Suite
	issuer    *Issuer
	refresh   *refreshtoken.InMemoryRefreshTokenStore
	blacklist *revocation.InMemoryTRL
	metrics   *metrics.Metrics
	userID    id.UserID
	appID     id.ApplicationID
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.refresh = refreshtoken.New()
	s.blacklist = revocation.NewInMemoryTRL()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.userID = id.NewUserID()
	s.appID = id.NewApplicationID()

	issuer, err := New(
		jwttoken.NewJWTService("test-signing-key", "campus-sso"),
		s.refresh,
		s.blacklist,
		30*time.Minute,
		30*24*time.Hour,
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.issuer = issuer
}

func (s *IssuerSuite) TestIssueAndVerifyAccess() {
	ctx := context.Background()
	now := time.Now()

	access, err := s.issuer.IssueAccess(ctx, s.userID, s.appID.String(), []string{"email"}, now)
	s.Require().NoError(err)
	s.NotEmpty(access.JTI)
	s.Equal(30*time.Minute, access.ExpiresIn)

	claims, err := s.issuer.VerifyAccess(ctx, access.Token)
	s.Require().NoError(err)
	s.Equal(s.userID.String(), claims.Subject)
	s.Equal(s.appID.String(), claims.AudienceValue())
	s.Equal([]string{"email"}, claims.Scopes)
	s.Equal(access.JTI, claims.ID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.TokensIssued.WithLabelValues("access")))
}

func (s *IssuerSuite) TestVerifyAccessRejectsBlacklistedToken() {
	ctx := context.Background()
	access, err := s.issuer.IssueAccess(ctx, s.userID, s.appID.String(), nil, time.Now())
	s.Require().NoError(err)

	s.Require().NoError(s.blacklist.RevokeToken(ctx, access.JTI, time.Hour))

	_, err = s.issuer.VerifyAccess(ctx, access.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *IssuerSuite) TestVerifyAccessRejectsExpiredToken() {
	ctx := context.Background()
	access, err := s.issuer.IssueAccess(ctx, s.userID, s.appID.String(), nil, time.Now().Add(-time.Hour))
	s.Require().NoError(err)

	_, err = s.issuer.VerifyAccess(ctx, access.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *IssuerSuite) TestRefreshTokensAreSingleUse() {
	ctx := context.Background()
	now := time.Now()

	raw, err := s.issuer.IssueRefresh(ctx, s.userID, "portal", []string{"profile"}, now)
	s.Require().NoError(err)
	s.NotEmpty(raw)

	record, err := s.issuer.ConsumeRefresh(ctx, raw, now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(s.userID, record.UserID)
	s.Equal("portal", record.Audience)
	s.Equal([]string{"profile"}, record.Scopes)

	_, err = s.issuer.ConsumeRefresh(ctx, raw, now.Add(time.Minute))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *IssuerSuite) TestExpiredRefreshTokenIsRejected() {
	ctx := context.Background()
	now := time.Now()
	raw, err := s.issuer.IssueRefresh(ctx, s.userID, "portal", nil, now)
	s.Require().NoError(err)

	_, err = s.issuer.ConsumeRefresh(ctx, raw, now.Add(31*24*time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *IssuerSuite) TestLogoutRevokesRefreshTokensAndBlacklistsAccess() {
	ctx := context.Background()
	now := time.Now()

	access, err := s.issuer.IssueAccess(ctx, s.userID, "portal", nil, now)
	s.Require().NoError(err)
	first, err := s.issuer.IssueRefresh(ctx, s.userID, "portal", nil, now)
	s.Require().NoError(err)
	second, err := s.issuer.IssueRefresh(ctx, s.userID, s.appID.String(), nil, now)
	s.Require().NoError(err)

	other := id.NewUserID()
	untouched, err := s.issuer.IssueRefresh(ctx, other, "portal", nil, now)
	s.Require().NoError(err)

	s.Require().NoError(s.issuer.Logout(ctx, s.userID, access.JTI, access.ExpiresAt, now))

	_, err = s.issuer.VerifyAccess(ctx, access.Token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.issuer.ConsumeRefresh(ctx, first, now)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.issuer.ConsumeRefresh(ctx, second, now)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.issuer.ConsumeRefresh(ctx, untouched, now)
	s.NoError(err)
}

func (s *IssuerSuite) TestMiddlewareVerifier() {
	ctx := context.Background()
	access, err := s.issuer.IssueAccess(ctx, s.userID, s.appID.String(), []string{"email"}, time.Now())
	s.Require().NoError(err)

	claims, err := NewMiddlewareVerifier(s.issuer).VerifyAccess(ctx, access.Token)
	s.Require().NoError(err)
	s.Equal(s.userID.String(), claims.UserID)
	s.Equal(s.appID.String(), claims.ApplicationID)
	s.Equal(access.JTI, claims.JTI)
}
