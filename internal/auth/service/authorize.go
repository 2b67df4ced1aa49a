package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	appmodels "campus-sso/internal/application/models"
	"campus-sso/internal/auth/models"
	"campus-sso/internal/credential/secrets"
	"campus-sso/internal/redirect"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/audit"
	"campus-sso/pkg/platform/sentinel"
	"campus-sso/pkg/requestcontext"
)

// Login runs the interactive flow for one form submission.
//
// A returned error means the caller's redirect target could not be trusted
// (unknown client, disallowed redirect) or the store failed; the handler
// must render a local error page. Every other outcome, including bad
// credentials, is a redirect back to the relying party or a consent prompt.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.FlowResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("client_id", req.ClientID))

	app, err := s.resolveTrustedTarget(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return nil, err
	}

	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.IncrementLogin(models.ErrorInvalidCredentials)
		s.logAudit(ctx, audit.EventLoginFailed,
			"email", req.Email,
			"app_id", app.ID.String(),
			"reason", models.ErrorInvalidCredentials,
		)
		return redirectWithError(req.RedirectURI, models.ErrorInvalidCredentials, req.State)
	}

	if code := s.checkAccess(ctx, app, user, true); code != "" {
		if code == errStoreFailure {
			return nil, dErrors.New(dErrors.CodeInternal, "failed to record application access")
		}
		s.metrics.IncrementLogin(code)
		s.logAudit(ctx, audit.EventLoginFailed,
			"user_id", user.ID.String(),
			"app_id", app.ID.String(),
			"reason", code,
		)
		return redirectWithError(req.RedirectURI, code, req.State)
	}

	scopes := s.scopes.Resolve(req.Scope)
	responseType := models.ParseResponseType(req.ResponseType, models.ResponseType(app.DefaultResponseType))

	covered, err := s.consents.HasConsent(ctx, user.ID, app.ID, scopes)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementLogin("success")
	s.logAudit(ctx, audit.EventLoginSucceeded,
		"user_id", user.ID.String(),
		"app_id", app.ID.String(),
	)

	if covered {
		return s.completeGrant(ctx, grantParams{
			user:         user,
			app:          app,
			redirectURI:  req.RedirectURI,
			scopes:       scopes,
			responseType: responseType,
			state:        req.State,
		})
	}
	return s.requestConsent(ctx, user, app, req.RedirectURI, scopes, responseType, req.State)
}

// Decide resolves an approval page submission. Unknown consent tokens are
// an error (no trusted target); everything else redirects to the target the
// pending consent was created for.
func (s *Service) Decide(ctx context.Context, req *models.DecisionRequest) (*models.FlowResult, error) {
	ctx, span := tracer.Start(ctx, "auth.Decide")
	defer span.End()

	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if req.ConsentToken == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent request not found")
	}
	if req.Decision != models.DecisionApprove && req.Decision != models.DecisionDeny {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "decision must be approve or deny")
	}

	now := requestcontext.Now(ctx)
	pending, err := s.pending.Consume(ctx, secrets.Fingerprint(req.ConsentToken), now)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrExpired) && pending != nil:
		s.metrics.IncrementConsentDecision("expired")
		return redirectWithError(pending.RedirectURI, models.ErrorConsentExpired, pending.State)
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "consent request not found")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent request")
	}

	app, err := s.apps.FindByID(ctx, pending.ApplicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	// Registered redirects may have changed while the user was deciding.
	if !app.AllowsRedirect(pending.RedirectURI) {
		return nil, dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri is not registered for this application")
	}

	user, err := s.users.FindByID(ctx, pending.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return redirectWithError(pending.RedirectURI, models.ErrorInvalidConsent, pending.State)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if code := s.checkAccess(ctx, app, user, false); code != "" {
		if code == errStoreFailure {
			return nil, dErrors.New(dErrors.CodeInternal, "failed to check application access")
		}
		return redirectWithError(pending.RedirectURI, code, pending.State)
	}

	s.metrics.IncrementConsentDecision(req.Decision)
	if req.Decision == models.DecisionDeny {
		s.logAudit(ctx, audit.EventConsentDenied,
			"user_id", user.ID.String(),
			"app_id", app.ID.String(),
			"decision", req.Decision,
		)
		return redirectWithError(pending.RedirectURI, models.ErrorAccessDenied, pending.State)
	}

	if _, err := s.consents.GrantConsent(ctx, user.ID, app.ID, pending.Scopes); err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventConsentGranted,
		"user_id", user.ID.String(),
		"app_id", app.ID.String(),
		"decision", req.Decision,
	)

	return s.completeGrant(ctx, grantParams{
		user:         user,
		app:          app,
		redirectURI:  pending.RedirectURI,
		scopes:       pending.Scopes,
		responseType: pending.ResponseType,
		state:        pending.State,
	})
}

// resolveTrustedTarget returns the application only if redirectURI is one of
// its registered targets.
func (s *Service) resolveTrustedTarget(ctx context.Context, clientID, redirectURI string) (*appmodels.Application, error) {
	app, err := s.apps.FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client_id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	if !app.AllowsRedirect(redirectURI) {
		s.logger.WarnContext(ctx, "redirect_uri rejected",
			"client_id", clientID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri is not registered for this application")
	}
	return app, nil
}

// authenticate returns nil, nil for unknown users and wrong passwords so
// the two cases are indistinguishable to the caller.
func (s *Service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, nil
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if !user.CheckPassword(password) {
		return nil, nil
	}
	return user, nil
}

const errStoreFailure = "store_failure"

// checkAccess returns the interactive error code blocking user from app, or
// "" when access is allowed. record ensures the membership row exists.
func (s *Service) checkAccess(ctx context.Context, app *appmodels.Application, user *models.User, record bool) string {
	if app.IsBlocked() {
		return models.ErrorAppBlocked
	}
	if !user.IsActive() {
		return models.ErrorUserBlocked
	}

	var (
		access *appmodels.Access
		err    error
	)
	if record {
		access, err = s.apps.EnsureAccess(ctx, user.ID, app.ID, requestcontext.Now(ctx))
	} else {
		access, err = s.apps.FindAccess(ctx, user.ID, app.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return ""
		}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check application access",
			"error", err,
			"user_id", user.ID.String(),
			"app_id", app.ID.String(),
		)
		return errStoreFailure
	}
	if access.Blocked {
		return models.ErrorUserBlocked
	}
	return ""
}

func (s *Service) requestConsent(
	ctx context.Context,
	user *models.User,
	app *appmodels.Application,
	redirectURI string,
	scopes []string,
	responseType models.ResponseType,
	state string,
) (*models.FlowResult, error) {
	token, fingerprint, err := secrets.NewOpaqueToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate consent token")
	}
	now := requestcontext.Now(ctx)
	pending := &models.PendingConsent{
		TokenHash:     fingerprint,
		UserID:        user.ID,
		ApplicationID: app.ID,
		RedirectURI:   redirectURI,
		Scopes:        scopes,
		ResponseType:  responseType,
		State:         state,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.ConsentTTL),
	}
	if err := s.pending.Create(ctx, pending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store consent request")
	}
	s.logAudit(ctx, audit.EventConsentRequested,
		"user_id", user.ID.String(),
		"app_id", app.ID.String(),
	)
	return &models.FlowResult{
		Consent: &models.ConsentPrompt{
			Token:           token,
			ApplicationName: app.Name,
			Scopes:          scopes,
			ExpiresAt:       pending.ExpiresAt,
		},
	}, nil
}

type grantParams struct {
	user         *models.User
	app          *appmodels.Application
	redirectURI  string
	scopes       []string
	responseType models.ResponseType
	state        string
}

// completeGrant mints the token or code and redirects with it in the query.
func (s *Service) completeGrant(ctx context.Context, p grantParams) (*models.FlowResult, error) {
	now := requestcontext.Now(ctx)
	params := map[string]string{"state": p.state}

	switch p.responseType {
	case models.ResponseTypeCode:
		code, fingerprint, err := secrets.NewOpaqueToken()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate authorization code")
		}
		record := &models.AuthorizationCodeRecord{
			CodeHash:      fingerprint,
			UserID:        p.user.ID,
			ApplicationID: p.app.ID,
			Scopes:        p.scopes,
			RedirectURI:   p.redirectURI,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.cfg.CodeTTL),
		}
		if err := s.codes.Create(ctx, record); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store authorization code")
		}
		s.metrics.IncrementTokenIssued("code")
		s.logAudit(ctx, audit.EventCodeIssued,
			"user_id", p.user.ID.String(),
			"app_id", p.app.ID.String(),
		)
		params["code"] = code
	default:
		access, err := s.tokens.IssueAccess(ctx, p.user.ID, p.app.ID.String(), p.scopes, now)
		if err != nil {
			return nil, err
		}
		s.logAudit(ctx, audit.EventTokenIssued,
			"user_id", p.user.ID.String(),
			"app_id", p.app.ID.String(),
		)
		params["token"] = access.Token
	}

	location, err := redirect.WithQuery(p.redirectURI, params)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build redirect")
	}
	return &models.FlowResult{RedirectURL: location}, nil
}
