package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"top-pick/credentials"
	"top-pick/models"
)

// ErrBreakerOpen is returned without contacting the upstream while the
// circuit breaker is open.
var ErrBreakerOpen = errors.New("holdings source circuit open")

// ResponseError describes a non-2xx answer from the holdings endpoint.
type ResponseError struct {
	StatusCode int
	Status     string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("holdings endpoint returned %s", e.Status)
}

func (e *ResponseError) Unwrap() error { return ErrMalformedResponse }

// Retryable reports whether another attempt could succeed.
func (e *ResponseError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	URL        string
	Timeout    time.Duration // per attempt
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	UserAgent  string
}

// HTTPSource fetches the holdings array over HTTP.
type HTTPSource struct {
	cfg     HTTPConfig
	client  *http.Client
	creds   credentials.Provider
	breaker *Breaker
	log     logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes an HTTPSource.
type Option func(*HTTPSource)

func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSource) { s.client = c }
}

func WithCredentials(p credentials.Provider) Option {
	return func(s *HTTPSource) { s.creds = p }
}

func WithBreaker(b *Breaker) Option {
	return func(s *HTTPSource) { s.breaker = b }
}

func NewHTTPSource(cfg HTTPConfig, log logrus.FieldLogger, opts ...Option) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "top-pick/1.0"
	}

	s := &HTTPSource{
		cfg:    cfg,
		client: &http.Client{},
		log:    log,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = NewBreaker(DefaultBreakerConfig(cfg.URL), log)
	}
	return s
}

// Fetch downloads and decodes the holdings. Transport errors and retryable
// statuses are retried with exponential backoff; the last error is returned
// once retries are exhausted.
func (s *HTTPSource) Fetch(ctx context.Context) ([]models.Candidate, error) {
	if !s.breaker.Allow() {
		return nil, ErrBreakerOpen
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(attempt-1, s.cfg.BaseDelay, s.cfg.MaxDelay)
			s.log.WithFields(logrus.Fields{
				"url":     s.cfg.URL,
				"attempt": attempt,
				"delay":   delay,
			}).WithError(lastErr).Warn("retrying holdings fetch")
			if err := s.sleep(ctx, delay); err != nil {
				return nil, errors.Wrap(err, "waiting to retry holdings fetch")
			}
		}

		candidates, err := s.fetchOnce(ctx)
		if err == nil {
			s.breaker.RecordSuccess()
			return candidates, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	s.breaker.RecordFailure()
	return nil, lastErr
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]models.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building holdings request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if token := credentials.Lookup(s.creds, credentials.DataTokenKey); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &ResponseError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	candidates, err := DecodeCandidates(resp.Body)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// transportError marks failures below HTTP: dial, TLS, timeouts.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetching holdings: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
