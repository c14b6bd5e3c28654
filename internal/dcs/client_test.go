package dcs_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passport-cri/internal/dcs"
	dErrors "passport-cri/pkg/domain-errors"
	"passport-cri/pkg/platform/circuit"
)

func TestCheck_PostsEnvelopeAndReturnsResponse(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("response-envelope"))
	}))
	defer server.Close()

	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second, slog.New(slog.DiscardHandler))
	resp, err := client.Check(context.Background(), "request-envelope")
	require.NoError(t, err)

	assert.Equal(t, "response-envelope", resp)
	assert.Equal(t, "application/jose", gotContentType)
	assert.Equal(t, "request-envelope", gotBody)
}

func TestCheck_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second, slog.New(slog.DiscardHandler))
	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnvelope))
	assert.Contains(t, err.Error(), "500 status code")
}

func TestCheck_EmptyResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second, slog.New(slog.DiscardHandler))
	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnvelope))
	assert.Equal(t, "Response from DCS is empty", err.Error())
}

func TestCheck_TimeoutHonoured(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("too late"))
	}))
	defer server.Close()
	defer close(release)

	client := dcs.NewClient(server.Client(), server.URL, 50*time.Millisecond, slog.New(slog.DiscardHandler))
	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnvelope))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCheck_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second, slog.New(slog.DiscardHandler))
	for range 5 {
		_, err := client.Check(context.Background(), "request-envelope")
		require.Error(t, err)
	}
	require.Equal(t, 5, calls)

	// Circuit is now open: calls fail fast without reaching the server.
	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	assert.Equal(t, "DCS is unavailable", err.Error())
	assert.Equal(t, 5, calls)
}

func TestCheck_CircuitRecoversAfterCooldown(t *testing.T) {
	var (
		calls   int
		healthy bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if !healthy {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("response-envelope"))
	}))
	defer server.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("dcs",
		circuit.WithFailureThreshold(5),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(10*time.Second),
		circuit.WithClock(func() time.Time { return now }),
	)
	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second,
		slog.New(slog.DiscardHandler), dcs.WithBreaker(breaker))

	for range 5 {
		_, err := client.Check(context.Background(), "request-envelope")
		require.Error(t, err)
	}
	require.Equal(t, 5, calls)

	// Upstream recovers while the circuit is open: fail-fast calls must not
	// reach it before the cooldown elapses.
	healthy = true
	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	require.Equal(t, 5, calls)

	// After the cooldown a trial call goes through, succeeds, and closes the
	// circuit; traffic flows normally again.
	now = now.Add(11 * time.Second)
	resp, err := client.Check(context.Background(), "request-envelope")
	require.NoError(t, err)
	assert.Equal(t, "response-envelope", resp)
	assert.Equal(t, 6, calls)

	resp, err = client.Check(context.Background(), "request-envelope")
	require.NoError(t, err)
	assert.Equal(t, "response-envelope", resp)
	assert.Equal(t, 7, calls)
}

func TestCheck_FailedTrialKeepsFailingFast(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("dcs",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(10*time.Second),
		circuit.WithClock(func() time.Time { return now }),
	)
	client := dcs.NewClient(server.Client(), server.URL, 5*time.Second,
		slog.New(slog.DiscardHandler), dcs.WithBreaker(breaker))

	_, err := client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	require.Equal(t, 1, calls)

	// Trial after cooldown still fails upstream; subsequent calls fail fast
	// until the next window.
	now = now.Add(11 * time.Second)
	_, err = client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	require.Equal(t, 2, calls)

	_, err = client.Check(context.Background(), "request-envelope")
	require.Error(t, err)
	assert.Equal(t, "DCS is unavailable", err.Error())
	assert.Equal(t, 2, calls)
}

func TestCheck_CallerContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("too late"))
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := dcs.NewClient(server.Client(), server.URL, time.Minute, slog.New(slog.DiscardHandler))
	_, err := client.Check(ctx, "request-envelope")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
