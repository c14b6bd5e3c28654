package httptransport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	dErrors "passport-cri/pkg/domain-errors"
)

const bearerPrefix = "Bearer "

type credentialHandler struct {
	credentials CredentialService
	logger      *slog.Logger
}

func newCredentialHandler(credentials CredentialService, logger *slog.Logger) *credentialHandler {
	return &credentialHandler{credentials: credentials, logger: logger}
}

func (h *credentialHandler) Register(r chi.Router) {
	r.Get("/credential/issue", h.handleIssue)
}

func (h *credentialHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessToken, err := bearerToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	signed, err := h.credentials.Issue(ctx, accessToken)
	if err != nil {
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/jwt")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(signed))
}

// bearerToken extracts the access token, distinguishing a missing header from
// one that is not a Bearer scheme so clients get an actionable description.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Missing access token from authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Authorization header is not a Bearer token")
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	if token == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Missing access token from authorization header")
	}
	return token, nil
}
