package credential

import (
	"github.com/google/uuid"

	"passport-cri/internal/check"
)

const (
	evidenceTypeIdentityCheck = "IdentityCheck"

	// GPG45 scoring for a passport check. Strength is a property of the
	// document class and never varies; validity is binary on the DCS verdict.
	passportStrengthScore = 4
	passportValidityScore = 2

	ciDocumentNotValid = "D02"
)

// Score maps a DCS outcome onto GPG45 evidence. A valid document scores
// validity with no contra-indicators; an invalid one scores zero and carries
// D02. The transaction id is freshly minted and ties the evidence back to this
// scoring event.
func Score(outcome check.Outcome) check.Evidence {
	evidence := check.Evidence{
		Type:          evidenceTypeIdentityCheck,
		TransactionID: uuid.NewString(),
		StrengthScore: passportStrengthScore,
	}
	if outcome.Valid {
		evidence.ValidityScore = passportValidityScore
	} else {
		evidence.ContraIndicators = []string{ciDocumentNotValid}
	}
	return evidence
}
