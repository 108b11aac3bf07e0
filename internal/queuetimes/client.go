// Package queuetimes is a client for the queue-times.com park and wait time feed.
// All requests share one rate limiter and one circuit breaker.
package queuetimes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/tphakala/parkpulse/internal/conf"
	"github.com/tphakala/parkpulse/internal/errors"
	"github.com/tphakala/parkpulse/internal/logging"
	"github.com/tphakala/parkpulse/internal/observability/metrics"
	"golang.org/x/time/rate"
)

const (
	serviceName = "queuetimes"

	DefaultBaseURL    = "https://queue-times.com"
	DefaultUserAgent  = "ParkPulse https://github.com/tphakala/parkpulse"
	RequestTimeout    = 10 * time.Second
	RetryDelay        = 2 * time.Second
	MaxRetries        = 3
	DefaultRateLimit  = 5.0
	DefaultBurst      = 5
	maxBodyPreviewLen = 200
	maxBodySize       = 16 << 20

	endpointParks      = "parks"
	endpointQueueTimes = "queue_times"

	breakerName         = "queue-times"
	breakerMinRequests  = 10
	breakerFailureRatio = 0.6
	breakerOpenTimeout  = time.Minute
	breakerInterval     = 2 * time.Minute
	breakerHalfOpenMax  = 1
)

var (
	clientLogger   *slog.Logger
	clientLevelVar = new(slog.LevelVar)
)

func init() {
	clientLevelVar.Set(slog.LevelInfo)
	clientLogger = logging.NewServiceLogger(serviceName, clientLevelVar)
}

// Feed is the subset of the client used by the synchronizer and the sampler.
type Feed interface {
	FetchParks(ctx context.Context) ([]ParkGroup, error)
	FetchQueueTimes(ctx context.Context, parkExternalID int) (*QueueTimes, error)
}

// Config holds client settings.
type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RateLimit  float64 // requests per second
	Burst      int
	MaxRetries int
	RetryDelay time.Duration
}

// ConfigFromSettings builds a Config from upstream settings, applying defaults for zero values.
func ConfigFromSettings(s *conf.UpstreamSettings) Config {
	cfg := Config{}
	if s != nil {
		cfg = Config{
			BaseURL:    s.BaseURL,
			UserAgent:  s.UserAgent,
			Timeout:    s.Timeout,
			RateLimit:  s.RateLimit,
			Burst:      s.Burst,
			MaxRetries: s.MaxRetries,
			RetryDelay: s.RetryDelay,
		}
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = RequestTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = RetryDelay
	}
	return c
}

// Client fetches feed documents.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *metrics.UpstreamMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a feed client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenMax,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A park that does not exist says nothing about feed health.
			return err == nil || !isServerSide(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			clientLogger.Warn("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			if c.metrics != nil {
				c.metrics.SetBreakerState(name, int(to))
			}
		},
	})

	clientLogger.Info("Queue-times client initialized",
		"base_url", cfg.BaseURL,
		"rate_limit", cfg.RateLimit,
		"burst", cfg.Burst,
		"max_retries", cfg.MaxRetries)
	return c
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// FetchParks retrieves the park groups document.
func (c *Client) FetchParks(ctx context.Context) ([]ParkGroup, error) {
	body, err := c.get(ctx, endpointParks, c.config.BaseURL+"/parks.json")
	if err != nil {
		return nil, err
	}
	var groups []ParkGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		clientLogger.Error("Failed to decode parks document",
			"error", err,
			"body_preview", truncateBodyPreview(string(body)))
		return nil, newClientError(err, errors.CategoryFileParsing, "decode_parks", endpointParks)
	}
	return groups, nil
}

// FetchQueueTimes retrieves the wait time document of one park.
func (c *Client) FetchQueueTimes(ctx context.Context, parkExternalID int) (*QueueTimes, error) {
	url := fmt.Sprintf("%s/parks/%d/queue_times.json", c.config.BaseURL, parkExternalID)
	body, err := c.get(ctx, endpointQueueTimes, url)
	if err != nil {
		return nil, err
	}
	var doc QueueTimes
	if err := json.Unmarshal(body, &doc); err != nil {
		clientLogger.Warn("Failed to decode queue times document",
			"park_external_id", parkExternalID,
			"error", err,
			"body_preview", truncateBodyPreview(string(body)))
		return nil, errors.New(err).
			Component(serviceName).
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_queue_times").
			Context("endpoint", endpointQueueTimes).
			Context("park_external_id", parkExternalID).
			Build()
	}
	return &doc, nil
}

// get fetches url with rate limiting, circuit breaking and retries.
func (c *Client) get(ctx context.Context, endpoint, url string) ([]byte, error) {
	logger := clientLogger.With("endpoint", endpoint, "url", url)

	var lastErr error
	for attempt := range c.config.MaxRetries {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry(endpoint)
			}
			if err := sleepContext(ctx, c.config.RetryDelay*time.Duration(attempt)); err != nil {
				return nil, newClientError(err, errors.CategoryCancellation, "retry_wait", endpoint)
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newClientError(err, errors.CategoryCancellation, "rate_limiter_wait", endpoint)
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doOnce(ctx, endpoint, url)
		})
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.Debug("Circuit breaker rejected request", "state", c.breaker.State().String())
			return nil, errors.New(err).
				Component(serviceName).
				Category(errors.CategoryNetwork).
				Context("operation", "circuit_open").
				Context("endpoint", endpoint).
				Build()
		}
		if ctx.Err() != nil || !isRetryable(err) {
			break
		}
		logger.Warn("Request failed, retrying",
			"attempt", attempt+1,
			"max_attempts", c.config.MaxRetries,
			"error", err)
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		return nil, errors.New(lastErr).
			Component(serviceName).
			Category(errors.CategoryUpstream).
			Context("operation", "feed_response").
			Context("endpoint", endpoint).
			Context("status_code", se.code).
			Context("max_retries", c.config.MaxRetries).
			Build()
	}
	return nil, errors.New(lastErr).
		Component(serviceName).
		Category(errors.CategoryNetwork).
		Context("operation", "feed_request").
		Context("endpoint", endpoint).
		Context("max_retries", c.config.MaxRetries).
		NetworkContext(url, c.config.Timeout).
		Build()
}

// doOnce performs a single GET and returns the body of a 2xx response.
func (c *Client) doOnce(ctx context.Context, endpoint, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordRequest(endpoint, "error", time.Since(start))
		}
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			clientLogger.Debug("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if c.metrics != nil {
		c.metrics.RecordRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		clientLogger.Warn("Received non-OK status code",
			"url", url,
			"status_code", resp.StatusCode,
			"response_body", truncateBodyPreview(string(body)))
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}

// statusError is returned for non-2xx responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("received non-OK response (%d)", e.code)
}

// StatusCode returns the HTTP status of a failed feed response, if err carries one.
func StatusCode(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.code, true
	}
	return 0, false
}

// isServerSide reports whether err indicates a feed-side or transport failure.
func isServerSide(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// isRetryable reports whether a failed attempt should be retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return isServerSide(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newClientError creates a standardized client error with common fields.
func newClientError(err error, category errors.ErrorCategory, operation, endpoint string) error {
	return errors.New(err).
		Component(serviceName).
		Category(category).
		Context("operation", operation).
		Context("endpoint", endpoint).
		Build()
}

// truncateBodyPreview truncates response body for logging.
func truncateBodyPreview(body string) string {
	if len(body) > maxBodyPreviewLen {
		return body[:maxBodyPreviewLen] + "... (truncated)"
	}
	return body
}
