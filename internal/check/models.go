package check

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date with no time component, serialized as "2006-01-02".
// Passport attributes (birth, expiry) are dates, and anything carrying a clock
// or zone would leak into the DCS payload and the issued credential.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SubjectAttributes is the claimed identity data submitted by the passport
// holder, in the field layout DCS expects.
type SubjectAttributes struct {
	PassportNumber string   `json:"passportNumber"`
	Surname        string   `json:"surname"`
	Forenames      []string `json:"forenames"`
	DateOfBirth    Date     `json:"dateOfBirth"`
	ExpiryDate     Date     `json:"expiryDate"`
}

// Validate rejects subjects that would produce an unanswerable DCS query.
func (s SubjectAttributes) Validate() error {
	switch {
	case s.PassportNumber == "":
		return fmt.Errorf("passport number is required")
	case s.Surname == "":
		return fmt.Errorf("surname is required")
	case len(s.Forenames) == 0:
		return fmt.Errorf("at least one forename is required")
	case s.DateOfBirth.IsZero():
		return fmt.Errorf("date of birth is required")
	case s.ExpiryDate.IsZero():
		return fmt.Errorf("expiry date is required")
	}
	return nil
}

// Outcome is the business-level result DCS reports after checking a document.
// Error=true means DCS could not perform the check; Valid is only meaningful
// when Error is false.
type Outcome struct {
	CorrelationID string   `json:"correlationId"`
	RequestID     string   `json:"requestId"`
	Error         bool     `json:"error"`
	Valid         bool     `json:"valid"`
	ErrorMessage  []string `json:"errorMessage,omitempty"`
}

// Evidence is the GPG45 scoring derived from an Outcome. ValidityScore and
// ContraIndicators are mutually exclusive: a non-zero validity always pairs
// with no contra-indicators and vice versa.
type Evidence struct {
	Type             string   `json:"type"`
	TransactionID    string   `json:"txn"`
	StrengthScore    int      `json:"strengthScore"`
	ValidityScore    int      `json:"validityScore"`
	ContraIndicators []string `json:"ci,omitempty"`
}

// Record is one completed DCS round trip. Created once, immutable thereafter;
// retention is owned by the store, never by this service.
type Record struct {
	ResourceID string            `json:"resourceId"`
	Subject    SubjectAttributes `json:"subject"`
	Outcome    Outcome           `json:"outcome"`
	Evidence   Evidence          `json:"evidence"`
	UserID     string            `json:"userId"`
	ClientID   string            `json:"clientId"`
}
