package passport

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"passport-cri/internal/audit"
	"passport-cri/internal/check"
	"passport-cri/internal/credential"
	dErrors "passport-cri/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mock_collaborators.go -package=mocks

var tracer = otel.Tracer("passport-cri/internal/passport")

var checksRun = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "passport_cri_checks_total",
	Help: "Passport check pipeline runs by outcome",
}, []string{"outcome"})

// Codec seals and opens the JOSE envelopes exchanged with DCS.
// Satisfied by *envelope.Codec.
type Codec interface {
	Prepare(payload any) (string, error)
	Unwrap(token string, v any) error
}

// Checker performs the DCS round trip. Satisfied by *dcs.Client.
type Checker interface {
	Check(ctx context.Context, envelope string) (string, error)
}

// CodeIssuer mints authorization codes for completed checks.
// Satisfied by *authcode.Service.
type CodeIssuer interface {
	Issue(ctx context.Context, resourceID, redirectURI string) (string, error)
}

// Request carries everything a check run needs: the OAuth session parameters,
// the acting user, and the claimed passport attributes.
type Request struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	UserID       string
	Subject      check.SubjectAttributes
}

// Service orchestrates the check pipeline: seal the subject into an envelope,
// round-trip it through DCS, score the outcome, persist the record, and mint
// an authorization code. Any failing step aborts the rest; nothing persists
// past the failing step.
type Service struct {
	codec  Codec
	dcs    Checker
	checks check.Store
	codes  CodeIssuer
	audit  audit.Publisher
	logger *slog.Logger
}

func NewService(
	codec Codec,
	checker Checker,
	checks check.Store,
	codes CodeIssuer,
	auditor audit.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		codec:  codec,
		dcs:    checker,
		checks: checks,
		codes:  codes,
		audit:  auditor,
		logger: logger,
	}
}

// RunCheck executes the full pipeline and returns the authorization code the
// client redeems later for a credential.
func (s *Service) RunCheck(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", dErrors.New(dErrors.CodeInvalidRequest, "Invalid request")
	}
	ctx, span := tracer.Start(ctx, "passport.RunCheck", trace.WithAttributes(
		attribute.String("client_id", req.ClientID),
	))
	defer span.End()

	code, err := s.runCheck(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		checksRun.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	checksRun.WithLabelValues("success").Inc()
	return code, nil
}

func (s *Service) runCheck(ctx context.Context, req *Request) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	if err := req.Subject.Validate(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidRequest, err.Error())
	}

	requestEnvelope, err := s.codec.Prepare(dcsRequest{
		SubjectAttributes: req.Subject,
		CorrelationID:     uuid.NewString(),
		RequestID:         uuid.NewString(),
		Timestamp:         time.Now().UTC(),
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeEnvelope, "failed to prepare DCS payload")
	}

	responseEnvelope, err := s.checkWithDCS(ctx, requestEnvelope)
	if err != nil {
		return "", err
	}

	event := audit.Event{
		Type:     audit.EventPassportRequestSentToDCS,
		UserID:   req.UserID,
		ClientID: req.ClientID,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return "", err
	}

	var outcome check.Outcome
	if err := s.codec.Unwrap(responseEnvelope, &outcome); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeEnvelope, "failed to unwrap DCS response")
	}
	if outcome.Error {
		return "", dErrors.New(dErrors.CodeDCSError, dcsErrorMessage(outcome))
	}

	record := &check.Record{
		ResourceID: uuid.NewString(),
		Subject:    req.Subject,
		Outcome:    outcome,
		Evidence:   credential.Score(outcome),
		UserID:     req.UserID,
		ClientID:   req.ClientID,
	}
	if err := s.checks.Put(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist passport check record")
	}

	code, err := s.codes.Issue(ctx, record.ResourceID, req.RedirectURI)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue authorization code")
	}

	s.logger.Info("passport check completed",
		"resource_id", record.ResourceID,
		"client_id", req.ClientID,
		"document_valid", outcome.Valid,
	)
	return code, nil
}

func (s *Service) checkWithDCS(ctx context.Context, requestEnvelope string) (string, error) {
	ctx, span := tracer.Start(ctx, "passport.dcsCheck")
	defer span.End()

	responseEnvelope, err := s.dcs.Check(ctx, requestEnvelope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dcs request failed")
		return "", err
	}
	return responseEnvelope, nil
}

func validateRequest(req *Request) error {
	switch {
	case req.ClientID == "":
		return dErrors.New(dErrors.CodeInvalidRequest, "Missing client_id parameter")
	case req.RedirectURI == "":
		return dErrors.New(dErrors.CodeInvalidRequest, "Missing redirect_uri parameter")
	case req.ResponseType != "code":
		return dErrors.New(dErrors.CodeInvalidRequest, "Unsupported response_type")
	case req.UserID == "":
		return dErrors.New(dErrors.CodeInvalidRequest, "Missing user id header")
	}
	return nil
}

func dcsErrorMessage(outcome check.Outcome) string {
	if len(outcome.ErrorMessage) == 0 {
		return "DCS returned an error response"
	}
	return "DCS returned an error: " + strings.Join(outcome.ErrorMessage, "; ")
}
