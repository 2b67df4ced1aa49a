package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"campus-sso/internal/auth/models"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/httputil"
	"campus-sso/pkg/platform/middleware/apikey"
	"campus-sso/pkg/platform/middleware/auth"
	"campus-sso/pkg/requestcontext"
)

// Service defines the interface for the authorization flow operations.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.FlowResult, error)
	Decide(ctx context.Context, req *models.DecisionRequest) (*models.FlowResult, error)
	ExchangeCode(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error)
	PortalLogin(ctx context.Context, req *models.PortalLoginRequest) (*models.SessionTokens, error)
	Refresh(ctx context.Context, req *models.RefreshRequest) (*models.SessionTokens, error)
	Introspect(ctx context.Context, token string) (*models.Introspection, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (map[string]string, error)
	SDKVerify(ctx context.Context, token string, boundApp id.ApplicationID) (*models.SDKVerification, error)
	SDKLogin(ctx context.Context, req *models.PortalLoginRequest, boundApp id.ApplicationID) (*models.SDKLoginResult, error)
}

// Handler serves the browser flow, the code exchange and the session API.
type Handler struct {
	service        Service
	verifier       auth.AccessVerifier
	keys           apikey.Authenticator
	portalAudience string
	errorPageURL   string
	logger         *slog.Logger
}

// New creates a new auth Handler. portalAudience is the aud of first-party
// session tokens; only those reach /api/auth/me. errorPageURL may be empty,
// in which case untrusted-target failures render a local page.
func New(service Service, verifier auth.AccessVerifier, keys apikey.Authenticator, portalAudience, errorPageURL string, logger *slog.Logger) *Handler {
	return &Handler{
		service:        service,
		verifier:       verifier,
		keys:           keys,
		portalAudience: portalAudience,
		errorPageURL:   errorPageURL,
		logger:         logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/login", h.HandleLogin)
	r.Post("/consent/decision", h.HandleConsentDecision)
	r.Post("/oauth/token", h.HandleToken)

	r.Post("/api/auth/login", h.HandlePortalLogin)
	r.Post("/api/auth/refresh", h.HandleRefresh)
	r.Post("/api/auth/verify", h.HandleIntrospect)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.verifier, h.logger))
		r.Post("/api/auth/logout", h.HandleLogout)
		r.With(auth.RequireAudience(h.portalAudience, h.logger)).Get("/api/auth/me", h.HandleMe)
	})
	r.Group(func(r chi.Router) {
		r.Use(apikey.RequireAPIKey(h.keys, h.logger))
		r.Post("/api/sdk/login", h.HandleSDKLogin)
		r.Get("/api/sdk/verify", h.HandleSDKVerify)
	})
}

// HandleLogin processes the browser login form.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFlowError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	req := &models.LoginRequest{
		Email:        r.PostForm.Get("email"),
		Password:     r.PostForm.Get("password"),
		ClientID:     r.PostForm.Get("client_id"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		Scope:        r.PostForm.Get("scope"),
		ResponseType: r.PostForm.Get("response_type"),
		State:        r.PostForm.Get("state"),
	}
	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.renderFlowError(w, r, err)
		return
	}
	h.writeFlowResult(w, r, result)
}

// HandleConsentDecision processes the approval page submission.
func (h *Handler) HandleConsentDecision(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderFlowError(w, r, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	result, err := h.service.Decide(r.Context(), &models.DecisionRequest{
		ConsentToken: r.PostForm.Get("consent_token"),
		Decision:     r.PostForm.Get("decision"),
	})
	if err != nil {
		h.renderFlowError(w, r, err)
		return
	}
	h.writeFlowResult(w, r, result)
}

func (h *Handler) writeFlowResult(w http.ResponseWriter, r *http.Request, result *models.FlowResult) {
	if result.Consent != nil {
		h.renderConsent(w, r, result.Consent)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// HandleToken exchanges an authorization code. Accepts JSON or form bodies.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.TokenRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid form body"))
			return
		}
		req = models.TokenRequest{
			GrantType:    r.PostForm.Get("grant_type"),
			Code:         r.PostForm.Get("code"),
			RedirectURI:  r.PostForm.Get("redirect_uri"),
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid request body"))
		return
	}
	if req.ClientID == "" {
		if clientID, secret, ok := r.BasicAuth(); ok {
			req.ClientID, req.ClientSecret = clientID, secret
		}
	}

	result, err := h.service.ExchangeCode(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to exchange authorization code", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandlePortalLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.PortalLoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	tokens, err := h.service.PortalLogin(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "portal login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RefreshRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	tokens, err := h.service.Refresh(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "token refresh failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokens)
}

type introspectRequest struct {
	Token string `json:"token"`
}

func (h *Handler) HandleIntrospect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req introspectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	result, err := h.service.Introspect(ctx, req.Token)
	if err != nil {
		h.writeServiceError(ctx, w, "token introspection failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx); err != nil {
		h.writeServiceError(ctx, w, "logout failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.service.Me(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleSDKLogin signs a user in on behalf of the API key's application.
func (h *Handler) HandleSDKLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.PortalLoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	result, err := h.service.SDKLogin(ctx, &req, requestcontext.ApplicationID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "sdk login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleSDKVerify answers relying-party backends. The bearer token may come
// from the query string or the Authorization header.
func (h *Handler) HandleSDKVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = auth.BearerToken(r)
	}
	result, err := h.service.SDKVerify(ctx, token, requestcontext.ApplicationID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "sdk verification failed", err)
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnauthorized
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
