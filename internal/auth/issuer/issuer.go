// Package issuer mints and verifies the tokens handed to relying parties:
// stateless access JWTs with a jti blacklist, and opaque single-use
// refresh tokens stored by fingerprint.
package issuer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/credential/secrets"
	jwttoken "campus-sso/internal/jwt_token"
	"campus-sso/internal/platform/metrics"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/sentinel"
)

var tracer = otel.Tracer("campus-sso/auth/issuer")

// Blacklist records revoked access-token ids until the token would have
// expired on its own.
type Blacklist interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RefreshStore interface {
	Create(ctx context.Context, token *models.RefreshTokenRecord) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error)
	RevokeAllForUser(ctx context.Context, userID id.UserID) (int, error)
}

// AccessToken is a freshly signed access token and the claims it carries.
type AccessToken struct {
	Token     string
	JTI       string
	Scopes    []string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type Issuer struct {
	jwt        *jwttoken.JWTService
	refresh    RefreshStore
	blacklist  Blacklist
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Issuer) {
		i.metrics = m
	}
}

func New(jwt *jwttoken.JWTService, refresh RefreshStore, blacklist Blacklist, accessTTL, refreshTTL time.Duration, opts ...Option) (*Issuer, error) {
	if jwt == nil || refresh == nil || blacklist == nil {
		return nil, errors.New("jwt service, refresh store and blacklist are required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	i := &Issuer{
		jwt:        jwt,
		refresh:    refresh,
		blacklist:  blacklist,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL is the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccess signs an access token for userID aimed at audience.
func (i *Issuer) IssueAccess(ctx context.Context, userID id.UserID, audience string, scopes []string, now time.Time) (*AccessToken, error) {
	_, span := tracer.Start(ctx, "issuer.IssueAccess")
	defer span.End()

	if scopes == nil {
		scopes = []string{}
	}
	token, claims, err := i.jwt.GenerateAccessToken(userID, audience, scopes, now, i.accessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	i.metrics.IncrementTokenIssued("access")
	span.SetAttributes(attribute.String("token.jti", claims.ID))

	return &AccessToken{
		Token:     token,
		JTI:       claims.ID,
		Scopes:    scopes,
		ExpiresAt: claims.ExpiresAt.Time,
		ExpiresIn: i.accessTTL,
	}, nil
}

// VerifyAccess checks signature, expiry, token type and blacklist
// membership. Every rejection is CodeUnauthorized; store failures are
// internal errors so callers never fall back to weaker validation.
func (i *Issuer) VerifyAccess(ctx context.Context, token string) (*jwttoken.Claims, error) {
	ctx, span := tracer.Start(ctx, "issuer.VerifyAccess")
	defer span.End()

	claims, err := i.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := i.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check token revocation")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
	}
	return claims, nil
}

// IssueRefresh stores a new opaque refresh token and returns its plaintext.
func (i *Issuer) IssueRefresh(ctx context.Context, userID id.UserID, audience string, scopes []string, now time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "issuer.IssueRefresh")
	defer span.End()

	raw, fingerprint, err := secrets.NewOpaqueToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	record := &models.RefreshTokenRecord{
		TokenHash: fingerprint,
		UserID:    userID,
		Audience:  audience,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(i.refreshTTL),
	}
	if err := i.refresh.Create(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}
	i.metrics.IncrementTokenIssued("refresh")
	return raw, nil
}

// ConsumeRefresh redeems a refresh token. The stored row is deleted whether
// or not it was still valid.
func (i *Issuer) ConsumeRefresh(ctx context.Context, raw string, now time.Time) (*models.RefreshTokenRecord, error) {
	ctx, span := tracer.Start(ctx, "issuer.ConsumeRefresh")
	defer span.End()

	if raw == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired refresh token")
	}
	record, err := i.refresh.Consume(ctx, secrets.Fingerprint(raw), now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) ||
			errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume refresh token")
	}
	return record, nil
}

// Logout revokes every outstanding refresh token of userID and blacklists
// the presented access token until it expires.
func (i *Issuer) Logout(ctx context.Context, userID id.UserID, jti string, expiresAt, now time.Time) error {
	ctx, span := tracer.Start(ctx, "issuer.Logout")
	defer span.End()

	revoked, err := i.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh tokens")
	}

	ttl := expiresAt.Sub(now)
	if jti != "" && ttl > 0 {
		if err := i.blacklist.RevokeToken(ctx, jti, ttl); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to blacklist access token")
		}
	}

	i.logger.InfoContext(ctx, "user logged out",
		"user_id", userID.String(),
		"refresh_tokens_revoked", revoked,
	)
	return nil
}
