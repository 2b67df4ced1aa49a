package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"campus-sso/internal/credential/models"
	id "campus-sso/pkg/domain"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/platform/httputil"
	"campus-sso/pkg/platform/middleware/admin"
	"campus-sso/pkg/platform/middleware/auth"
	"campus-sso/pkg/requestcontext"
)

// Service defines the vault operations exposed over HTTP.
type Service interface {
	IssueUserKey(ctx context.Context, userID id.UserID, name string) (*models.IssuedKey, error)
	RotateKeys(ctx context.Context, owner models.Owner, name string) (*models.IssuedKey, error)
	RevokeKey(ctx context.Context, owner models.Owner, keyID id.APIKeyID) error
	ListKeys(ctx context.Context, owner models.Owner) ([]*models.APIKey, error)
	RotateClientSecret(ctx context.Context, appID id.ApplicationID) (*models.IssuedSecret, error)
}

// Handler serves developer API key management and the admin rotation routes.
type Handler struct {
	service        Service
	verifier       auth.AccessVerifier
	portalAudience string
	adminToken     string
	logger         *slog.Logger
}

func New(service Service, verifier auth.AccessVerifier, portalAudience, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		service:        service,
		verifier:       verifier,
		portalAudience: portalAudience,
		adminToken:     adminToken,
		logger:         logger,
	}
}

// Register mounts /api/keys (portal bearer tokens) and /api/applications
// (admin token).
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.verifier, h.logger))
		r.Use(auth.RequireAudience(h.portalAudience, h.logger))
		r.Post("/api/keys", h.HandleCreateKey)
		r.Get("/api/keys", h.HandleListKeys)
		r.Post("/api/keys/rotate", h.HandleRotateUserKeys)
		r.Delete("/api/keys/{id}", h.HandleRevokeKey)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/api/applications/{id}/keys/rotate", h.HandleRotateApplicationKeys)
		r.Post("/api/applications/{id}/secret/rotate", h.HandleRotateClientSecret)
	})
}

type keyRequest struct {
	Name string `json:"name"`
}

type keyResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	APIKey       string     `json:"api_key,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	RevokedCount *int       `json:"revoked_count,omitempty"`
}

type listKeysResponse struct {
	Keys []keyResponse `json:"keys"`
}

func toKeyResponse(key *models.APIKey) keyResponse {
	return keyResponse{
		ID:         key.ID.String(),
		Name:       key.Name,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}

func (h *Handler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	req, ok := h.decodeKeyRequest(w, r)
	if !ok {
		return
	}

	issued, err := h.service.IssueUserKey(ctx, userID, req.Name)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to issue api key", err)
		return
	}
	resp := toKeyResponse(issued.Key)
	resp.APIKey = issued.Secret
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keys, err := h.service.ListKeys(ctx, models.UserOwner(requestcontext.UserID(ctx)))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list api keys", err)
		return
	}
	resp := listKeysResponse{Keys: make([]keyResponse, 0, len(keys))}
	for _, key := range keys {
		resp.Keys = append(resp.Keys, toKeyResponse(key))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleRotateUserKeys(w http.ResponseWriter, r *http.Request) {
	h.rotate(w, r, models.UserOwner(requestcontext.UserID(r.Context())))
}

func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	keyID, err := id.ParseAPIKeyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeKey(ctx, models.UserOwner(requestcontext.UserID(ctx)), keyID); err != nil {
		h.writeServiceError(ctx, w, "failed to revoke api key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRotateApplicationKeys(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.rotate(w, r, models.ApplicationOwner(appID))
}

func (h *Handler) HandleRotateClientSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issued, err := h.service.RotateClientSecret(ctx, appID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to rotate client secret", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issued)
}

func (h *Handler) rotate(w http.ResponseWriter, r *http.Request, owner models.Owner) {
	ctx := r.Context()
	req, ok := h.decodeKeyRequest(w, r)
	if !ok {
		return
	}
	issued, err := h.service.RotateKeys(ctx, owner, req.Name)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to rotate api keys", err)
		return
	}
	resp := toKeyResponse(issued.Key)
	resp.APIKey = issued.Secret
	resp.RevokedCount = &issued.Revoked
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// decodeKeyRequest accepts an empty body.
func (h *Handler) decodeKeyRequest(w http.ResponseWriter, r *http.Request) (keyRequest, bool) {
	var req keyRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "invalid api key request",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, false
	}
	return req, true
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
