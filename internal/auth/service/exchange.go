package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/credential/secrets"
	"campus-sso/internal/redirect"
	"campus-sso/internal/scope"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/audit"
	"campus-sso/pkg/platform/sentinel"
	"campus-sso/pkg/requestcontext"
)

const tokenTypeBearer = "Bearer"

// ExchangeCode trades a one-time authorization code for an access token on
// behalf of a confidential client. Consent is never written here; it was
// settled when the code was issued.
func (s *Service) ExchangeCode(ctx context.Context, req *models.TokenRequest) (result *models.TokenResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.ExchangeCode")
	defer span.End()
	defer s.metrics.ObserveExchangeCode(time.Now())
	defer func() {
		if err != nil {
			s.metrics.IncrementCodeExchange(string(dErrors.CodeOf(err)))
			return
		}
		s.metrics.IncrementCodeExchange("success")
	}()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("client_id", req.ClientID),
		attribute.String("grant_type", req.GrantType),
	)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	app, err := s.clients.VerifyClientSecret(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		s.logAudit(ctx, audit.EventCodeExchangeFailed, "reason", string(dErrors.CodeOf(err)))
		return nil, err
	}
	if app.IsBlocked() {
		s.logAudit(ctx, audit.EventCodeExchangeFailed, "app_id", app.ID.String(), "reason", models.ErrorAppBlocked)
		return nil, dErrors.New(dErrors.CodeInvalidClient, "application is blocked")
	}

	now := requestcontext.Now(ctx)
	record, err := s.codes.Consume(ctx, secrets.Fingerprint(req.Code), app.ID, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) ||
			errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrInvalidState) {
			s.logAudit(ctx, audit.EventCodeExchangeFailed, "app_id", app.ID.String(), "reason", err.Error())
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code is invalid, expired or already used")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume authorization code")
	}

	if record.RedirectURI != "" {
		if !redirect.Equal(req.RedirectURI, record.RedirectURI) {
			return nil, dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri does not match the authorization request")
		}
	} else if req.RedirectURI != "" && !app.AllowsRedirect(req.RedirectURI) {
		return nil, dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri is not registered for this application")
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code subject no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if code := s.checkAccess(ctx, app, user, false); code != "" {
		if code == errStoreFailure {
			return nil, dErrors.New(dErrors.CodeInternal, "failed to check application access")
		}
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "user is blocked for this application")
	}

	access, err := s.tokens.IssueAccess(ctx, user.ID, app.ID.String(), record.Scopes, now)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCodeExchanged,
		"user_id", user.ID.String(),
		"app_id", app.ID.String(),
	)

	return &models.TokenResult{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(access.ExpiresIn.Seconds()),
		Scope:       scope.String(record.Scopes),
	}, nil
}
