package passport

import (
	"time"

	"passport-cri/internal/check"
)

// dcsRequest is the outbound DCS payload: the claimed passport attributes
// flattened alongside the tracing identifiers DCS echoes back in its response.
type dcsRequest struct {
	check.SubjectAttributes
	CorrelationID string    `json:"correlationId"`
	RequestID     string    `json:"requestId"`
	Timestamp     time.Time `json:"timestamp"`
}
