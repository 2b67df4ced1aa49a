package models

import (
	"strings"
	"time"

	dErrors "campus-sso/pkg/domain-errors"
)

// Interactive error codes travel back to the relying party as ?error=<code>.
const (
	ErrorInvalidCredentials = "invalid_credentials"
	ErrorAppBlocked         = "app_blocked"
	ErrorUserBlocked        = "user_blocked"
	ErrorAccessDenied       = "access_denied"
	ErrorConsentExpired     = "consent_expired"
	ErrorInvalidConsent     = "invalid_consent"
)

const (
	DecisionApprove = "approve"
	DecisionDeny    = "deny"
)

const GrantTypeAuthorizationCode = "authorization_code"

// LoginRequest is the form posted by the browser to /login.
type LoginRequest struct {
	Email        string
	Password     string
	ClientID     string
	RedirectURI  string
	Scope        string
	ResponseType string
	State        string
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.ResponseType = strings.ToLower(strings.TrimSpace(r.ResponseType))
}

// Validate only covers fields needed before a redirect target is trusted.
// Missing credentials become invalid_credentials further down the flow.
func (r *LoginRequest) Validate() error {
	if r.ClientID == "" {
		return dErrors.New(dErrors.CodeInvalidClient, "client_id is required")
	}
	if r.RedirectURI == "" {
		return dErrors.New(dErrors.CodeInvalidRedirect, "redirect_uri is required")
	}
	return nil
}

// ConsentPrompt carries what the approval page needs. Token is shown once.
type ConsentPrompt struct {
	Token           string
	ApplicationName string
	Scopes          []string
	ExpiresAt       time.Time
}

// FlowResult is the outcome of an interactive step: either a redirect back to
// the relying party or an approval page. Error is the interactive error code
// carried on RedirectURL, if any.
type FlowResult struct {
	RedirectURL string
	Error       string
	Consent     *ConsentPrompt
}

type DecisionRequest struct {
	ConsentToken string
	Decision     string
}

func (r *DecisionRequest) Normalize() {
	r.ConsentToken = strings.TrimSpace(r.ConsentToken)
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
}

// TokenRequest is the server-to-server code exchange body.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (r *TokenRequest) Normalize() {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.Code = strings.TrimSpace(r.Code)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.ClientID = strings.TrimSpace(r.ClientID)
}

func (r *TokenRequest) Validate() error {
	if r.GrantType != GrantTypeAuthorizationCode {
		return dErrors.New(dErrors.CodeUnsupportedGrantType, "only authorization_code is supported")
	}
	if r.ClientID == "" || r.ClientSecret == "" {
		return dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeInvalidGrant, "code is required")
	}
	return nil
}

type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

type PortalLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionTokens is returned by first-party login and refresh.
type SessionTokens struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         *UserSummary `json:"user,omitempty"`
}

// Introspection describes a verified access token.
type Introspection struct {
	Valid     bool     `json:"valid"`
	Subject   string   `json:"sub,omitempty"`
	Audience  string   `json:"aud,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	Type      string   `json:"type,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// SDKVerification is what relying-party backends receive.
type SDKVerification struct {
	Valid  bool              `json:"valid"`
	User   map[string]string `json:"user,omitempty"`
	Scopes []string          `json:"scopes,omitempty"`
	AppID  string            `json:"app_id,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// SDKLoginResult is a password login performed by a relying-party backend.
// No refresh token is issued; the backend logs the user in again.
type SDKLoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	Scope       string      `json:"scope"`
	User        UserSummary `json:"user"`
}
