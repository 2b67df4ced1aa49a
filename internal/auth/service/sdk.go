package service

import (
	"context"
	"errors"
	"strings"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/scope"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/audit"
	"campus-sso/pkg/platform/sentinel"
	"campus-sso/pkg/requestcontext"
)

// SDKLogin checks a password on behalf of a relying-party backend. The token
// is issued to the application the API key is bound to, or to the portal for
// unbound keys, with the registry's default scopes.
func (s *Service) SDKLogin(ctx context.Context, req *models.PortalLoginRequest, boundApp id.ApplicationID) (*models.SDKLoginResult, error) {
	ctx, span := tracer.Start(ctx, "auth.SDKLogin")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.IncrementLogin(models.ErrorInvalidCredentials)
		s.logAudit(ctx, audit.EventLoginFailed, "email", email, "reason", models.ErrorInvalidCredentials)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsActive() {
		s.metrics.IncrementLogin(models.ErrorUserBlocked)
		return nil, dErrors.New(dErrors.CodeForbidden, "account is not active")
	}

	audience := s.cfg.PortalAudience
	if !boundApp.IsNil() {
		blocked, err := s.blockedForApplication(ctx, user, boundApp)
		if err != nil {
			return nil, err
		}
		if blocked {
			s.metrics.IncrementLogin(models.ErrorUserBlocked)
			return nil, dErrors.New(dErrors.CodeForbidden, "access to this application is blocked")
		}
		audience = boundApp.String()
	}

	scopes := s.scopes.Defaults()
	access, err := s.tokens.IssueAccess(ctx, user.ID, audience, scopes, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementLogin("success")
	s.logAudit(ctx, audit.EventLoginSucceeded, "user_id", user.ID.String(), "audience", audience)
	return &models.SDKLoginResult{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(access.ExpiresIn.Seconds()),
		Scope:       scope.String(scopes),
		User:        user.Summary(),
	}, nil
}

// SDKVerify is called by relying-party backends holding an API key. When the
// key is bound to an application, the token must have been issued to it.
// Invalid tokens produce {valid:false}; only infrastructure failures error.
func (s *Service) SDKVerify(ctx context.Context, token string, boundApp id.ApplicationID) (*models.SDKVerification, error) {
	ctx, span := tracer.Start(ctx, "auth.SDKVerify")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return &models.SDKVerification{Valid: false, Error: "token is required"}, nil
	}
	claims, err := s.tokens.VerifyAccess(ctx, token)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return &models.SDKVerification{Valid: false, Error: dErrors.MessageOf(err)}, nil
		}
		return nil, err
	}
	audience := claims.AudienceValue()
	if !boundApp.IsNil() && audience != boundApp.String() {
		return &models.SDKVerification{Valid: false, Error: "token was not issued to this application"}, nil
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return &models.SDKVerification{Valid: false, Error: "invalid token subject"}, nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.SDKVerification{Valid: false, Error: "user not found"}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive() {
		return &models.SDKVerification{Valid: false, Error: models.ErrorUserBlocked}, nil
	}

	return &models.SDKVerification{
		Valid:  true,
		User:   scope.FilterProfile(user.Profile(), claims.Scopes),
		Scopes: claims.Scopes,
		AppID:  audience,
	}, nil
}
