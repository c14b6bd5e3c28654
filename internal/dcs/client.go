package dcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "passport-cri/pkg/domain-errors"
	"passport-cri/pkg/platform/circuit"
)

var checkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "passport_cri_dcs_request_duration_seconds",
	Help:    "Latency of document check requests to DCS",
	Buckets: prometheus.DefBuckets,
}, []string{"status"})

const contentTypeJOSE = "application/jose"

// Client posts opaque JOSE envelopes to the Document Checking Service. It
// never inspects the payload in either direction; the envelope codec owns
// both formats. A circuit breaker sheds load while DCS is failing so a slow
// outage does not tie up every request for the full timeout.
type Client struct {
	http    *http.Client
	postURL string
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBreaker replaces the default circuit breaker, so tests can tune its
// thresholds and clock.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func NewClient(httpClient *http.Client, postURL string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		http:    httpClient,
		postURL: postURL,
		timeout: timeout,
		breaker: circuit.New("dcs", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check posts the envelope and returns the response envelope. The per-call
// timeout is layered onto the caller's context, so whichever deadline is
// sooner wins. While the breaker is open it fails fast, except for the trial
// calls the breaker admits after its cooldown; their outcomes close the
// circuit again once DCS recovers.
func (c *Client) Check(ctx context.Context, envelope string) (string, error) {
	if !c.breaker.Allow() {
		return "", dErrors.New(dErrors.CodeEnvelope, "DCS is unavailable")
	}

	response, err := c.post(ctx, envelope)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Error("DCS circuit opened", "url", c.postURL)
		}
		return "", err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("DCS circuit closed", "url", c.postURL)
	}
	return response, nil
}

func (c *Client) post(ctx context.Context, envelope string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, strings.NewReader(envelope))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeEnvelope, "build DCS request")
	}
	req.Header.Set("Content-Type", contentTypeJOSE)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		checkDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return "", dErrors.Wrap(err, dErrors.CodeEnvelope, "Error when attempting to post to DCS")
	}
	defer resp.Body.Close()
	checkDuration.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeEnvelope, "read DCS response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", dErrors.New(dErrors.CodeEnvelope,
			fmt.Sprintf("DCS responded with a %d status code", resp.StatusCode))
	}
	if len(body) == 0 {
		return "", dErrors.New(dErrors.CodeEnvelope, "Response from DCS is empty")
	}
	return string(body), nil
}
