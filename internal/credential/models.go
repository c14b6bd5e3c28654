package credential

import (
	"github.com/golang-jwt/jwt/v5"

	"passport-cri/internal/check"
)

const (
	vcTypeVerifiableCredential    = "VerifiableCredential"
	vcTypeIdentityCheckCredential = "IdentityCheckCredential"

	namePartFamilyName = "FamilyName"
	namePartGivenName  = "GivenName"
)

// NamePart is one component of a structured name.
type NamePart struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Name groups the parts of a single full name.
type Name struct {
	NameParts []NamePart `json:"nameParts"`
}

// BirthDate wraps a date value; the credential format carries it as an array
// of objects rather than a bare string.
type BirthDate struct {
	Value string `json:"value"`
}

// Passport carries the document fields attested by the credential.
type Passport struct {
	DocumentNumber string `json:"documentNumber"`
	ExpiryDate     string `json:"expiryDate"`
}

// Subject is the credentialSubject block. Every field is a single-element
// array in practice, but the shape allows multiples.
type Subject struct {
	Name      []Name      `json:"name"`
	BirthDate []BirthDate `json:"birthDate"`
	Passport  []Passport  `json:"passport"`
}

// VerifiableCredential is the vc claim of the issued JWT.
type VerifiableCredential struct {
	Type              []string         `json:"type"`
	CredentialSubject Subject          `json:"credentialSubject"`
	Evidence          []check.Evidence `json:"evidence"`
}

// Claims is the full JWT claim set for an issued credential.
type Claims struct {
	jwt.RegisteredClaims
	VC VerifiableCredential `json:"vc"`
}
