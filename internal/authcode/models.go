package authcode

import "time"

// Record is one issued authorization code. The state machine per code is
// ISSUED -> EXCHANGED (terminal) or ISSUED -> EXPIRED (terminal, lazy,
// detected at lookup time). ExchangedAt and IssuedAccessToken are set exactly
// once, by the store's conditional write.
type Record struct {
	Code              string     `json:"code"`
	ResourceID        string     `json:"resourceId"`
	RedirectURI       string     `json:"redirectUri"`
	IssuedAt          time.Time  `json:"issuedAt"`
	ExchangedAt       *time.Time `json:"exchangedAt,omitempty"`
	IssuedAccessToken string     `json:"issuedAccessToken,omitempty"`
}

// Exchanged reports whether the code has already been consumed.
func (r *Record) Exchanged() bool {
	return r.ExchangedAt != nil
}
