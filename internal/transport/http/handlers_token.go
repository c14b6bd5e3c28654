package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"passport-cri/internal/token"
	dErrors "passport-cri/pkg/domain-errors"
)

type tokenHandler struct {
	tokens TokenService
	logger *slog.Logger
}

func newTokenHandler(tokens TokenService, logger *slog.Logger) *tokenHandler {
	return &tokenHandler{tokens: tokens, logger: logger}
}

func (h *tokenHandler) Register(r chi.Router) {
	r.Post("/token", h.handleToken)
}

func (h *tokenHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidRequest, "Failed to parse token request body"))
		return
	}

	req := &token.Request{
		GrantType:           r.PostForm.Get("grant_type"),
		Code:                r.PostForm.Get("code"),
		RedirectURI:         r.PostForm.Get("redirect_uri"),
		ClientID:            r.PostForm.Get("client_id"),
		ClientSecret:        r.PostForm.Get("client_secret"),
		ClientAssertion:     r.PostForm.Get("client_assertion"),
		ClientAssertionType: r.PostForm.Get("client_assertion_type"),
	}

	resp, err := h.tokens.Exchange(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "token exchange failed",
			"request_id", middleware.GetReqID(ctx),
			"client_id", req.ClientID,
			"error", err,
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
