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

// PortalLogin signs a user into the SSO portal itself. The access token is
// aimed at the portal audience and carries every registered scope.
func (s *Service) PortalLogin(ctx context.Context, req *models.PortalLoginRequest) (*models.SessionTokens, error) {
	ctx, span := tracer.Start(ctx, "auth.PortalLogin")
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

	tokens, err := s.issueSession(ctx, user, s.cfg.PortalAudience, scope.All())
	if err != nil {
		return nil, err
	}
	summary := user.Summary()
	tokens.User = &summary

	s.metrics.IncrementLogin("success")
	s.logAudit(ctx, audit.EventLoginSucceeded, "user_id", user.ID.String())
	return tokens, nil
}

// Refresh redeems a single-use refresh token for a new access token and a
// rotated refresh token with the same audience and scopes.
func (s *Service) Refresh(ctx context.Context, req *models.RefreshRequest) (*models.SessionTokens, error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	if req == nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "refresh_token is required")
	}
	now := requestcontext.Now(ctx)
	record, err := s.tokens.ConsumeRefresh(ctx, strings.TrimSpace(req.RefreshToken), now)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is not active")
	}
	if appID, err := id.ParseApplicationID(record.Audience); err == nil {
		if blocked, err := s.blockedForApplication(ctx, user, appID); err != nil {
			return nil, err
		} else if blocked {
			return nil, dErrors.New(dErrors.CodeForbidden, "access to this application is blocked")
		}
	}

	tokens, err := s.issueSession(ctx, user, record.Audience, record.Scopes)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventTokenRefreshed, "user_id", user.ID.String())
	return tokens, nil
}

// Introspect reports whether token is a valid, unrevoked access token. It
// never returns an error for a bad token; the reason is in the result.
func (s *Service) Introspect(ctx context.Context, token string) (*models.Introspection, error) {
	ctx, span := tracer.Start(ctx, "auth.Introspect")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return &models.Introspection{Valid: false, Error: "token is required"}, nil
	}
	claims, err := s.tokens.VerifyAccess(ctx, token)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return &models.Introspection{Valid: false, Error: dErrors.MessageOf(err)}, nil
		}
		return nil, err
	}
	out := &models.Introspection{
		Valid:    true,
		Subject:  claims.Subject,
		Audience: claims.AudienceValue(),
		Scopes:   claims.Scopes,
		Type:     claims.Type,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return out, nil
}

// Logout revokes the user's refresh tokens and blacklists the access token
// the request was authenticated with.
func (s *Service) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer span.End()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.tokens.Logout(ctx, userID, requestcontext.TokenID(ctx), requestcontext.TokenExpiry(ctx), requestcontext.Now(ctx)); err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventUserLoggedOut, "user_id", userID.String())
	return nil
}

// Me returns the profile of the authenticated user.
func (s *Service) Me(ctx context.Context) (map[string]string, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return scope.FilterProfile(user.Profile(), scope.All()), nil
}

func (s *Service) issueSession(ctx context.Context, user *models.User, audience string, scopes []string) (*models.SessionTokens, error) {
	now := requestcontext.Now(ctx)
	access, err := s.tokens.IssueAccess(ctx, user.ID, audience, scopes, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(ctx, user.ID, audience, scopes, now)
	if err != nil {
		return nil, err
	}
	return &models.SessionTokens{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(access.ExpiresIn.Seconds()),
	}, nil
}

func (s *Service) blockedForApplication(ctx context.Context, user *models.User, appID id.ApplicationID) (bool, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return true, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	code := s.checkAccess(ctx, app, user, false)
	if code == errStoreFailure {
		return false, dErrors.New(dErrors.CodeInternal, "failed to check application access")
	}
	return code != "", nil
}
