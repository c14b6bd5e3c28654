package passport_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"passport-cri/internal/audit"
	"passport-cri/internal/authcode"
	"passport-cri/internal/check"
	"passport-cri/internal/envelope"
	"passport-cri/internal/passport"
	"passport-cri/internal/passport/mocks"
	dErrors "passport-cri/pkg/domain-errors"
)

const (
	testClientID    = "ipv-core"
	testRedirectURI = "https://ipv-core.example.com/callback"
	testUserID      = "user-12345"
)

func validSubject() check.SubjectAttributes {
	return check.SubjectAttributes{
		PassportNumber: "1234567890",
		Surname:        "Tattsyrup",
		Forenames:      []string{"Tubbs"},
		DateOfBirth:    check.NewDate(1984, 9, 28),
		ExpiryDate:     check.NewDate(2024, 9, 3),
	}
}

func validRequest() *passport.Request {
	return &passport.Request{
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		ResponseType: "code",
		UserID:       testUserID,
		Subject:      validSubject(),
	}
}

// dcsStub plays the DCS side of the envelope exchange: it opens the request
// with its own keys, echoes the tracing ids, and seals its verdict back.
type dcsStub struct {
	codec   *envelope.Codec
	outcome check.Outcome
	err     error
}

func (s *dcsStub) Check(_ context.Context, requestEnvelope string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	var req struct {
		CorrelationID  string `json:"correlationId"`
		RequestID      string `json:"requestId"`
		PassportNumber string `json:"passportNumber"`
	}
	if err := s.codec.Unwrap(requestEnvelope, &req); err != nil {
		return "", err
	}
	outcome := s.outcome
	outcome.CorrelationID = req.CorrelationID
	outcome.RequestID = req.RequestID
	return s.codec.Prepare(outcome)
}

type fixture struct {
	svc      *passport.Service
	stub     *dcsStub
	checks   *check.InMemoryStore
	codes    *authcode.Service
	recorder *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	serviceSigning, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	serviceDecryption, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dcsSigning, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dcsDecryption, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serviceCodec := envelope.NewCodec(
		serviceSigning, serviceDecryption,
		&dcsDecryption.PublicKey, &dcsSigning.PublicKey,
	)
	dcsCodec := envelope.NewCodec(
		dcsSigning, dcsDecryption,
		&serviceDecryption.PublicKey, &serviceSigning.PublicKey,
	)

	f := &fixture{
		stub:     &dcsStub{codec: dcsCodec, outcome: check.Outcome{Valid: true}},
		checks:   check.NewInMemoryStore(),
		codes:    authcode.NewService(authcode.NewInMemoryStore(), 10*time.Minute),
		recorder: audit.NewRecorder(),
	}
	f.svc = passport.NewService(
		serviceCodec, f.stub, f.checks, f.codes, f.recorder,
		slog.New(slog.DiscardHandler),
	)
	return f
}

func (f *fixture) persistedRecord(t *testing.T, code string) *check.Record {
	t.Helper()
	codeRecord, err := f.codes.Lookup(context.Background(), code)
	require.NoError(t, err)
	record, err := f.checks.Get(context.Background(), codeRecord.ResourceID)
	require.NoError(t, err)
	return record
}

func TestRunCheck_ValidDocument(t *testing.T) {
	f := newFixture(t)

	code, err := f.svc.RunCheck(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, code)

	record := f.persistedRecord(t, code)
	assert.Equal(t, validSubject(), record.Subject)
	assert.Equal(t, testUserID, record.UserID)
	assert.Equal(t, testClientID, record.ClientID)
	assert.True(t, record.Outcome.Valid)
	assert.NotEmpty(t, record.Outcome.CorrelationID)
	assert.NotEmpty(t, record.Outcome.RequestID)

	assert.Equal(t, "IdentityCheck", record.Evidence.Type)
	assert.Equal(t, 4, record.Evidence.StrengthScore)
	assert.Equal(t, 2, record.Evidence.ValidityScore)
	assert.Empty(t, record.Evidence.ContraIndicators)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventPassportRequestSentToDCS, events[0].Type)
	assert.Equal(t, testUserID, events[0].UserID)
}

func TestRunCheck_InvalidDocumentStillIssuesCode(t *testing.T) {
	f := newFixture(t)
	f.stub.outcome = check.Outcome{Valid: false}

	code, err := f.svc.RunCheck(context.Background(), validRequest())
	require.NoError(t, err)

	record := f.persistedRecord(t, code)
	assert.False(t, record.Outcome.Valid)
	assert.Equal(t, 4, record.Evidence.StrengthScore)
	assert.Equal(t, 0, record.Evidence.ValidityScore)
	assert.Equal(t, []string{"D02"}, record.Evidence.ContraIndicators)
}

func TestRunCheck_DCSBusinessError(t *testing.T) {
	f := newFixture(t)
	f.stub.outcome = check.Outcome{
		Error:        true,
		ErrorMessage: []string{"unable to process document"},
	}

	_, err := f.svc.RunCheck(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDCSError))
	assert.Contains(t, err.Error(), "unable to process document")
}

func TestRunCheck_DCSTransportError(t *testing.T) {
	f := newFixture(t)
	f.stub.err = dErrors.New(dErrors.CodeEnvelope, "Error when attempting to post to DCS")

	_, err := f.svc.RunCheck(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnvelope))
	assert.Empty(t, f.recorder.Events(), "no audit event when the DCS call itself failed")
}

func TestRunCheck_AuditFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.recorder.FailWith = dErrors.New(dErrors.CodeAudit, "failed to send audit event")

	_, err := f.svc.RunCheck(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAudit))
}

func TestRunCheck_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*passport.Request)
	}{
		{"missing client_id", func(r *passport.Request) { r.ClientID = "" }},
		{"missing redirect_uri", func(r *passport.Request) { r.RedirectURI = "" }},
		{"wrong response_type", func(r *passport.Request) { r.ResponseType = "token" }},
		{"missing user id", func(r *passport.Request) { r.UserID = "" }},
		{"missing passport number", func(r *passport.Request) { r.Subject.PassportNumber = "" }},
		{"missing surname", func(r *passport.Request) { r.Subject.Surname = "" }},
		{"no forenames", func(r *passport.Request) { r.Subject.Forenames = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			tt.mutate(req)

			_, err := f.svc.RunCheck(context.Background(), req)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
			assert.Empty(t, f.recorder.Events(), "nothing may happen before validation passes")
		})
	}
}

func TestRunCheck_PrepareFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	codec := mocks.NewMockCodec(ctrl)
	checker := mocks.NewMockChecker(ctrl)
	issuer := mocks.NewMockCodeIssuer(ctrl)

	codec.EXPECT().Prepare(gomock.Any()).Return("", errors.New("signer unavailable"))

	svc := passport.NewService(codec, checker, check.NewInMemoryStore(), issuer,
		audit.NewRecorder(), slog.New(slog.DiscardHandler))

	_, err := svc.RunCheck(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnvelope))
}

func TestRunCheck_CodeIssueFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	codec := mocks.NewMockCodec(ctrl)
	checker := mocks.NewMockChecker(ctrl)
	issuer := mocks.NewMockCodeIssuer(ctrl)

	codec.EXPECT().Prepare(gomock.Any()).Return("request-envelope", nil)
	checker.EXPECT().Check(gomock.Any(), "request-envelope").Return("response-envelope", nil)
	codec.EXPECT().Unwrap("response-envelope", gomock.Any()).DoAndReturn(
		func(_ string, v any) error {
			*(v.(*check.Outcome)) = check.Outcome{Valid: true}
			return nil
		})
	issuer.EXPECT().Issue(gomock.Any(), gomock.Any(), testRedirectURI).
		Return("", errors.New("store unavailable"))

	svc := passport.NewService(codec, checker, check.NewInMemoryStore(), issuer,
		audit.NewRecorder(), slog.New(slog.DiscardHandler))

	_, err := svc.RunCheck(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}
