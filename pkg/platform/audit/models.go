package audit

import (
	"context"
	"time"

	id "campus-sso/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers consent changes and other user-facing grants.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers auth failures, revocations and credential rotation.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine token issuance.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	UserID        id.UserID
	ApplicationID id.ApplicationID
	Subject       string
	Action        string
	Decision      string
	Reason        string
	RequestID     string
	ClientIP      string
	Device        string
}

type AuditEvent string

const (
	// Login and consent flow
	EventLoginSucceeded   AuditEvent = "login_succeeded"
	EventLoginFailed      AuditEvent = "login_failed"
	EventConsentRequested AuditEvent = "consent_requested"
	EventConsentGranted   AuditEvent = "consent_granted"
	EventConsentDenied    AuditEvent = "consent_denied"

	// Tokens
	EventTokenIssued        AuditEvent = "token_issued"
	EventCodeIssued         AuditEvent = "authorization_code_issued"
	EventCodeExchanged      AuditEvent = "authorization_code_exchanged"
	EventCodeExchangeFailed AuditEvent = "authorization_code_exchange_failed"
	EventTokenRefreshed     AuditEvent = "token_refreshed"
	EventUserLoggedOut      AuditEvent = "user_logged_out"

	// Credentials
	EventClientSecretRotated AuditEvent = "client_secret_rotated"
	EventAPIKeyCreated       AuditEvent = "api_key_created"
	EventAPIKeysRotated      AuditEvent = "api_keys_rotated"
	EventAPIKeyRevoked       AuditEvent = "api_key_revoked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentRequested: CategoryCompliance,
	EventConsentGranted:   CategoryCompliance,
	EventConsentDenied:    CategoryCompliance,

	EventLoginFailed:         CategorySecurity,
	EventCodeExchangeFailed:  CategorySecurity,
	EventUserLoggedOut:       CategorySecurity,
	EventClientSecretRotated: CategorySecurity,
	EventAPIKeysRotated:      CategorySecurity,
	EventAPIKeyRevoked:       CategorySecurity,

	EventLoginSucceeded: CategoryOperations,
	EventTokenIssued:    CategoryOperations,
	EventCodeIssued:     CategoryOperations,
	EventCodeExchanged:  CategoryOperations,
	EventTokenRefreshed: CategoryOperations,
	EventAPIKeyCreated:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
