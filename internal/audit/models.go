package audit

import "time"

// EventType enumerates the audit events this service emits. The values are part
// of the compliance contract with the downstream consumer; do not rename them.
type EventType string

const (
	EventPassportRequestSentToDCS EventType = "PASSPORT_REQUEST_SENT_TO_DCS"
	EventPassportCredentialIssued EventType = "PASSPORT_CREDENTIAL_ISSUED"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
}
