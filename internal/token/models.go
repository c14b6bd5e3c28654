package token

// GrantAuthorizationCode is the only grant this service supports.
const GrantAuthorizationCode = "authorization_code"

// Request is a parsed OAuth token request. The transport layer fills it from
// the form body; client credentials ride along for the authenticator.
type Request struct {
	GrantType   string
	Code        string
	RedirectURI string
	ClientID    string

	// Client authentication material; which field is set depends on the
	// client's registered auth method.
	ClientSecret        string
	ClientAssertion     string
	ClientAssertionType string
}

// Response is the successful token exchange result, in RFC 6749 §5.1 shape.
type Response struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
