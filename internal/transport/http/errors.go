package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "passport-cri/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope, shaped like an OAuth error body so
// token endpoint clients can consume every endpoint the same way.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeError centralizes domain error translation to HTTP responses so every
// handler reports failures with the same envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, statusFor(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: err.Error(),
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidRequest, dErrors.CodeInvalidGrant, dErrors.CodeUnsupportedGrantType:
		return http.StatusBadRequest
	case dErrors.CodeInvalidClient, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeAccessDenied:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
