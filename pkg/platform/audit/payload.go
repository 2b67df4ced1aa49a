package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "campus-sso/pkg/domain"
)

// Payload is the wire form of an Event on the outbox and the Kafka topic.
type Payload struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Timestamp     string `json:"timestamp"`
	UserID        string `json:"user_id,omitempty"`
	ApplicationID string `json:"app_id,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Action        string `json:"action"`
	Decision      string `json:"decision,omitempty"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	ClientIP      string `json:"client_ip,omitempty"`
	Device        string `json:"device,omitempty"`
}

// NewPayload assigns a fresh event id and flattens the event.
func NewPayload(event Event) Payload {
	category := event.Category
	if category == "" {
		category = AuditEvent(event.Action).Category()
	}
	p := Payload{
		ID:        uuid.NewString(),
		Category:  string(category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		Device:    event.Device,
	}
	if !event.UserID.IsNil() {
		p.UserID = event.UserID.String()
	}
	if !event.ApplicationID.IsNil() {
		p.ApplicationID = event.ApplicationID.String()
	}
	return p
}

// Key is the partition key: events for one user stay ordered.
func (p Payload) Key() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ID
}

func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Event rebuilds the domain event. Malformed ids are left nil.
func (p Payload) Event() Event {
	e := Event{
		Category:  EventCategory(p.Category),
		Subject:   p.Subject,
		Action:    p.Action,
		Decision:  p.Decision,
		Reason:    p.Reason,
		RequestID: p.RequestID,
		ClientIP:  p.ClientIP,
		Device:    p.Device,
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		e.Timestamp = ts
	}
	if u, err := id.ParseUserID(p.UserID); err == nil {
		e.UserID = u
	}
	if a, err := id.ParseApplicationID(p.ApplicationID); err == nil {
		e.ApplicationID = a
	}
	return e
}
