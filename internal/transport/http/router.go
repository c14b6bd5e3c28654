package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"passport-cri/internal/passport"
	"passport-cri/internal/token"
)

// CheckService runs the passport check pipeline. Satisfied by *passport.Service.
type CheckService interface {
	RunCheck(ctx context.Context, req *passport.Request) (string, error)
}

// TokenService exchanges authorization codes. Satisfied by *token.Service.
type TokenService interface {
	Exchange(ctx context.Context, req *token.Request) (*token.Response, error)
}

// CredentialService issues signed credentials. Satisfied by *credential.Service.
type CredentialService interface {
	Issue(ctx context.Context, accessToken string) (string, error)
}

// NewRouter mounts the public endpoints behind the standard middleware stack.
// Handlers stay thin; everything interesting happens in the services.
func NewRouter(
	checks CheckService,
	tokens TokenService,
	credentials CredentialService,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	newCheckHandler(checks, logger).Register(r)
	newTokenHandler(tokens, logger).Register(r)
	newCredentialHandler(credentials, logger).Register(r)
	return r
}
