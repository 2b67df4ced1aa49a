package handler

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"campus-sso/internal/auth/models"
	"campus-sso/internal/redirect"
	"campus-sso/internal/scope"
	dErrors "campus-sso/pkg/domain-errors"
	"campus-sso/pkg/requestcontext"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type consentPage struct {
	ApplicationName string
	Scopes          []scope.Description
	Token           string
	ExpiresAt       string
}

type errorPage struct {
	Code    string
	Message string
}

func (h *Handler) renderConsent(w http.ResponseWriter, r *http.Request, prompt *models.ConsentPrompt) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	err := pages.ExecuteTemplate(w, "consent.html", consentPage{
		ApplicationName: prompt.ApplicationName,
		Scopes:          scope.Describe(prompt.Scopes),
		Token:           prompt.Token,
		ExpiresAt:       prompt.ExpiresAt.UTC().Format(time.Kitchen + " MST"),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to render consent page",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

// renderFlowError handles failures where the caller's redirect target is not
// trusted: it shows a local page, or sends the browser to the configured
// error URL. It never redirects to the caller.
func (h *Handler) renderFlowError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "authorization flow failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "authorization flow rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", string(code),
		)
	}

	publicCode := string(code)
	message := dErrors.MessageOf(err)
	switch code {
	case dErrors.CodeNotFound:
		publicCode = models.ErrorInvalidConsent
		message = "This approval link is invalid or has already been used."
	case dErrors.CodeInternal:
		message = "Something went wrong. Please try again."
	}

	if h.errorPageURL != "" {
		if location, err := redirect.WithQuery(h.errorPageURL, map[string]string{"error": publicCode}); err == nil {
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, location, http.StatusFound)
			return
		}
	}

	status := code.HTTPStatus()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "error.html", errorPage{Code: publicCode, Message: message}); err != nil {
		h.logger.WarnContext(ctx, "failed to render error page", "error", err)
	}
}
