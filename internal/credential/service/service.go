// Package service is the credential vault: client secret verification and
// rotation, and the lifecycle of developer API keys.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	appmodels "campus-sso/internal/application/models"
	"campus-sso/internal/credential/models"
	"campus-sso/internal/credential/secrets"
	"campus-sso/internal/platform/metrics"
	"campus-sso/pkg/attrs"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	audit "campus-sso/pkg/platform/audit"
	"campus-sso/pkg/platform/sentinel"
	"campus-sso/pkg/platform/tx"
	"campus-sso/pkg/requestcontext"
)

var tracer = otel.Tracer("campus-sso/credential")

type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error)
	FindByLookup(ctx context.Context, lookup string) (*models.APIKey, error)
	ListActive(ctx context.Context, owner models.Owner) ([]*models.APIKey, error)
	Revoke(ctx context.Context, keyID id.APIKeyID, now time.Time) error
	RevokeAll(ctx context.Context, owner models.Owner, now time.Time) (int, error)
	RotateForOwner(ctx context.Context, owner models.Owner, next *models.APIKey, now time.Time) (int, error)
	TouchLastUsed(ctx context.Context, keyID id.APIKeyID, now time.Time) error
}

type ApplicationStore interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error)
	FindByClientID(ctx context.Context, clientID string) (*appmodels.Application, error)
	Update(ctx context.Context, app *appmodels.Application) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns every secret the SSO hands out to relying parties.
type Service struct {
	keys           KeyStore
	apps           ApplicationStore
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxRunner sets the unit of work used for client secret rotation.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(keys KeyStore, apps ApplicationStore, opts ...Option) *Service {
	s := &Service{keys: keys, apps: apps}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewShardedRunner()
	}
	return s
}

// VerifyClientSecret authenticates a confidential client. Every failure is
// reported as invalid_client so callers cannot probe which part was wrong.
func (s *Service) VerifyClientSecret(ctx context.Context, clientID, secret string) (*appmodels.Application, error) {
	ctx, span := tracer.Start(ctx, "credential.VerifyClientSecret")
	defer span.End()

	invalid := dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || secret == "" {
		return nil, invalid
	}
	app, err := s.apps.FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	if !app.HasSecret() {
		return nil, invalid
	}
	if err := secrets.Verify(secret, app.ClientSecretHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify client secret")
	}
	return app, nil
}

// RotateClientSecret replaces the application's secret and revokes every
// application-scoped API key in the same unit of work. The plaintext secret
// is returned once.
func (s *Service) RotateClientSecret(ctx context.Context, appID id.ApplicationID) (*models.IssuedSecret, error) {
	ctx, span := tracer.Start(ctx, "credential.RotateClientSecret")
	defer span.End()
	span.SetAttributes(attribute.String("app_id", appID.String()))

	secret, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate client secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash client secret")
	}

	now := requestcontext.Now(ctx)
	var (
		clientID string
		revoked  int
	)
	err = s.tx.RunInTx(tx.WithShardKey(ctx, appID.String()), func(ctx context.Context) error {
		app, err := s.apps.FindByID(ctx, appID)
		if err != nil {
			return err
		}
		app.ApplySecretRotation(hash, now)
		if err := s.apps.Update(ctx, app); err != nil {
			return err
		}
		revoked, err = s.keys.RevokeAll(ctx, models.ApplicationOwner(appID), now)
		if err != nil {
			return err
		}
		clientID = app.ClientID
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate client secret")
	}

	s.metrics.IncrementKeyRotation("client_secret")
	s.logAudit(ctx, audit.EventClientSecretRotated,
		"app_id", appID.String(),
		"revoked_api_keys", revoked,
	)
	return &models.IssuedSecret{
		ClientID:       clientID,
		ClientSecret:   secret,
		RotatedAt:      now,
		RevokedAPIKeys: revoked,
	}, nil
}

// IssueUserKey mints an additional key for a user without revoking others.
func (s *Service) IssueUserKey(ctx context.Context, userID id.UserID, name string) (*models.IssuedKey, error) {
	ctx, span := tracer.Start(ctx, "credential.IssueUserKey")
	defer span.End()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user required")
	}
	key, raw, err := s.newKey(ctx, models.UserOwner(userID), name)
	if err != nil {
		return nil, err
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store api key")
	}

	s.logAudit(ctx, audit.EventAPIKeyCreated,
		"user_id", userID.String(),
		"key_id", key.ID.String(),
	)
	return &models.IssuedKey{Key: key, Secret: raw}, nil
}

// RotateKeys revokes every active key in the owner's scope and returns a
// single replacement.
func (s *Service) RotateKeys(ctx context.Context, owner models.Owner, name string) (*models.IssuedKey, error) {
	ctx, span := tracer.Start(ctx, "credential.RotateKeys")
	defer span.End()

	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "key owner required")
	}
	if owner.IsApplication() {
		if _, err := s.apps.FindByID(ctx, owner.ApplicationID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
		}
	}

	key, raw, err := s.newKey(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	revoked, err := s.keys.RotateForOwner(ctx, owner, key, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate api keys")
	}

	scopeLabel := "user"
	if owner.IsApplication() {
		scopeLabel = "application"
	}
	s.metrics.IncrementKeyRotation(scopeLabel)
	s.logAudit(ctx, audit.EventAPIKeysRotated,
		"user_id", owner.UserID.String(),
		"app_id", owner.ApplicationID.String(),
		"owner", owner.String(),
		"revoked_count", revoked,
	)
	return &models.IssuedKey{Key: key, Secret: raw, Revoked: revoked}, nil
}

// RevokeKey revokes one key. Keys outside the owner's scope look missing.
func (s *Service) RevokeKey(ctx context.Context, owner models.Owner, keyID id.APIKeyID) error {
	key, err := s.keys.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "api key not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load api key")
	}
	if !key.OwnedBy(owner) {
		return dErrors.New(dErrors.CodeNotFound, "api key not found")
	}
	if err := s.keys.Revoke(ctx, keyID, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke api key")
	}
	s.logAudit(ctx, audit.EventAPIKeyRevoked,
		"user_id", owner.UserID.String(),
		"key_id", keyID.String(),
	)
	return nil
}

func (s *Service) ListKeys(ctx context.Context, owner models.Owner) ([]*models.APIKey, error) {
	keys, err := s.keys.ListActive(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list api keys")
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	return keys, nil
}

// AuthenticateKey resolves a raw key presented by a relying-party backend.
// Unknown, malformed, revoked and mismatched keys are all unauthorized.
func (s *Service) AuthenticateKey(ctx context.Context, raw string) (*models.APIKey, error) {
	ctx, span := tracer.Start(ctx, "credential.AuthenticateKey")
	defer span.End()

	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	lookup, secret, err := secrets.ParseAPIKey(raw)
	if err != nil {
		return nil, invalid
	}
	key, err := s.keys.FindByLookup(ctx, lookup)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load api key")
	}
	if !key.IsActive() {
		return nil, invalid
	}
	if err := secrets.Verify(secret, key.KeyHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify api key")
	}

	now := requestcontext.Now(ctx)
	if err := s.keys.TouchLastUsed(ctx, key.ID, now); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to record api key use", "key_id", key.ID.String(), "error", err)
	}
	key.Touch(now)
	return key, nil
}

func (s *Service) newKey(ctx context.Context, owner models.Owner, name string) (*models.APIKey, string, error) {
	minted, err := secrets.NewAPIKey()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	if len(name) > 64 {
		return nil, "", dErrors.New(dErrors.CodeValidation, "key name must be 64 characters or less")
	}
	return &models.APIKey{
		ID:            id.NewAPIKeyID(),
		Name:          name,
		Lookup:        minted.Lookup,
		KeyHash:       minted.Hash,
		UserID:        owner.UserID,
		ApplicationID: owner.ApplicationID,
		CreatedAt:     requestcontext.Now(ctx),
	}, minted.Raw, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:      event.Category(),
		UserID:        attrs.UserID(attributes),
		ApplicationID: attrs.ApplicationID(attributes),
		Subject:       attrs.String(attributes, "owner"),
		Action:        string(event),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
