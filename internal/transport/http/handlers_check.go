package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"passport-cri/internal/check"
	"passport-cri/internal/passport"
	dErrors "passport-cri/pkg/domain-errors"
)

// userIDHeader carries the identity of the subject on whose behalf the
// relying party runs the check.
const userIDHeader = "user_id"

type checkHandler struct {
	checks CheckService
	logger *slog.Logger
}

func newCheckHandler(checks CheckService, logger *slog.Logger) *checkHandler {
	return &checkHandler{checks: checks, logger: logger}
}

func (h *checkHandler) Register(r chi.Router) {
	r.Post("/check", h.handleCheck)
}

// checkResponse carries the authorization code minted for a completed check.
type checkResponse struct {
	Code string `json:"code"`
}

func (h *checkHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var subject check.SubjectAttributes
	if err := json.NewDecoder(r.Body).Decode(&subject); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidRequest, "Failed to parse passport details"))
		return
	}

	req := &passport.Request{
		ClientID:     r.URL.Query().Get("client_id"),
		RedirectURI:  r.URL.Query().Get("redirect_uri"),
		ResponseType: r.URL.Query().Get("response_type"),
		UserID:       r.Header.Get(userIDHeader),
		Subject:      subject,
	}

	code, err := h.checks.RunCheck(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "passport check failed",
			"request_id", middleware.GetReqID(ctx),
			"client_id", req.ClientID,
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{Code: code})
}
