// Package service is the authorization flow controller: interactive login
// and consent, the authorization code exchange, and the first-party session
// endpoints built on the same token issuer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	appmodels "campus-sso/internal/application/models"
	"campus-sso/internal/auth/issuer"
	"campus-sso/internal/auth/models"
	consentmodels "campus-sso/internal/consent/models"
	jwttoken "campus-sso/internal/jwt_token"
	"campus-sso/internal/platform/metrics"
	"campus-sso/internal/redirect"
	"campus-sso/internal/scope"
	"campus-sso/pkg/attrs"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/audit"
	"campus-sso/pkg/requestcontext"
)

var tracer = otel.Tracer("campus-sso/auth")

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type ApplicationStore interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*appmodels.Application, error)
	FindByClientID(ctx context.Context, clientID string) (*appmodels.Application, error)
	EnsureAccess(ctx context.Context, userID id.UserID, appID id.ApplicationID, now time.Time) (*appmodels.Access, error)
	FindAccess(ctx context.Context, userID id.UserID, appID id.ApplicationID) (*appmodels.Access, error)
}

type ConsentLedger interface {
	HasConsent(ctx context.Context, userID id.UserID, appID id.ApplicationID, scopes []string) (bool, error)
	GrantConsent(ctx context.Context, userID id.UserID, appID id.ApplicationID, scopes []string) (*consentmodels.Record, error)
}

type TokenIssuer interface {
	AccessTTL() time.Duration
	IssueAccess(ctx context.Context, userID id.UserID, audience string, scopes []string, now time.Time) (*issuer.AccessToken, error)
	VerifyAccess(ctx context.Context, token string) (*jwttoken.Claims, error)
	IssueRefresh(ctx context.Context, userID id.UserID, audience string, scopes []string, now time.Time) (string, error)
	ConsumeRefresh(ctx context.Context, raw string, now time.Time) (*models.RefreshTokenRecord, error)
	Logout(ctx context.Context, userID id.UserID, jti string, expiresAt, now time.Time) error
}

type ClientVerifier interface {
	VerifyClientSecret(ctx context.Context, clientID, secret string) (*appmodels.Application, error)
}

type CodeStore interface {
	Create(ctx context.Context, authCode *models.AuthorizationCodeRecord) error
	Consume(ctx context.Context, codeHash string, appID id.ApplicationID, now time.Time) (*models.AuthorizationCodeRecord, error)
}

type PendingConsentStore interface {
	Create(ctx context.Context, pending *models.PendingConsent) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.PendingConsent, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds the lifetimes and audiences the controller applies.
type Config struct {
	CodeTTL        time.Duration
	ConsentTTL     time.Duration
	PortalAudience string
}

const (
	defaultCodeTTL        = 5 * time.Minute
	defaultConsentTTL     = 10 * time.Minute
	defaultPortalAudience = "campus-portal"
)

type Service struct {
	users          UserStore
	apps           ApplicationStore
	consents       ConsentLedger
	tokens         TokenIssuer
	clients        ClientVerifier
	codes          CodeStore
	pending        PendingConsentStore
	scopes         *scope.Registry
	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

// Stores groups the persistence the controller needs.
type Stores struct {
	Users           UserStore
	Applications    ApplicationStore
	Codes           CodeStore
	PendingConsents PendingConsentStore
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

func WithScopeRegistry(registry *scope.Registry) Option {
	return func(s *Service) {
		s.scopes = registry
	}
}

func New(stores Stores, consents ConsentLedger, tokens TokenIssuer, clients ClientVerifier, cfg Config, opts ...Option) (*Service, error) {
	if stores.Users == nil || stores.Applications == nil || stores.Codes == nil || stores.PendingConsents == nil {
		return nil, errors.New("user, application, code and pending consent stores are required")
	}
	if consents == nil || tokens == nil || clients == nil {
		return nil, errors.New("consent ledger, token issuer and client verifier are required")
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = defaultCodeTTL
	}
	if cfg.ConsentTTL <= 0 {
		cfg.ConsentTTL = defaultConsentTTL
	}
	if cfg.PortalAudience == "" {
		cfg.PortalAudience = defaultPortalAudience
	}

	s := &Service{
		users:    stores.Users,
		apps:     stores.Applications,
		codes:    stores.Codes,
		pending:  stores.PendingConsents,
		consents: consents,
		tokens:   tokens,
		clients:  clients,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scopes == nil {
		s.scopes = scope.NewRegistry([]string{string(scope.Profile), string(scope.Email), string(scope.StudentAcademics)})
	}
	return s, nil
}

// redirectWithError builds the caller-facing error redirect. target must
// already have passed redirect validation.
func redirectWithError(target, code, state string) (*models.FlowResult, error) {
	location, err := redirect.WithQuery(target, map[string]string{"error": code, "state": state})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build redirect")
	}
	return &models.FlowResult{RedirectURL: location, Error: code}, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:      event.Category(),
		Timestamp:     requestcontext.Now(ctx),
		UserID:        attrs.UserID(attributes),
		ApplicationID: attrs.ApplicationID(attributes),
		Subject:       attrs.String(attributes, "email"),
		Action:        string(event),
		Decision:      attrs.String(attributes, "decision"),
		Reason:        attrs.String(attributes, "reason"),
		RequestID:     requestcontext.RequestID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		Device:        requestcontext.Device(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
