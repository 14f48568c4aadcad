package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/circuitbreaker"
	"github.com/halisaha/teammatch/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// maxBodyBytes bounds the size of a /users response.
	maxBodyBytes = 8 << 20

	// maxErrorMessage bounds the error body kept in APIError.
	maxErrorMessage = 200
)

// ClientConfig contains configuration for the directory client.
type ClientConfig struct {
	// BaseURL is the directory API base URL, e.g. https://api.example.org/api
	BaseURL string

	// Timeout bounds one whole listing, retries included.
	Timeout time.Duration

	// RequestsPerSecond and Burst limit outbound calls.
	RequestsPerSecond float64
	Burst             int

	// MaxAttempts per listing and the delay before the first retry.
	MaxAttempts int
	RetryDelay  time.Duration

	// HTTPClient overrides the transport. Used in tests.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		MaxAttempts:       3,
		RetryDelay:        200 * time.Millisecond,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the directory API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	now        func() time.Time
}

// NewClient creates a directory client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger.With("component", "directory_client")

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, max(config.Burst, 1)),
		breaker: circuitbreaker.DirectoryBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		}, shared.ErrUnauthorized),
		now: time.Now,
	}
	c.retrier = retry.DirectoryRetrier(config.MaxAttempts, config.RetryDelay, func(attempt int, err error, delay time.Duration) {
		logger.Debug("retrying directory request", "attempt", attempt, "delay", delay, "error", err)
	})
	return c
}

// ListUsers fetches every record from GET /users, bypassing HTTP caches.
// The call is bounded by the configured timeout.
func (c *Client) ListUsers(ctx context.Context, cred player.Credential) ([]PlayerRecordDTO, error) {
	if cred.IsEmpty() {
		return nil, shared.ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var records []PlayerRecordDTO
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		records, err = retry.DoWithData(ctx, c.retrier, func(ctx context.Context) ([]PlayerRecordDTO, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
			}
			return c.fetchOnce(ctx, cred)
		})
		return err
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", shared.ErrTimeout, err)
		}
		return nil, fmt.Errorf("list users: %w", err)
	}
	return records, nil
}

// fetchOnce performs one request and classifies failures for the retrier.
func (c *Client) fetchOnce(ctx context.Context, cred player.Credential) ([]PlayerRecordDTO, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.usersURL(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(cred))
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(ctx.Err())
		}
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: truncate(strings.TrimSpace(string(body)), maxErrorMessage)}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, retry.Permanent(fmt.Errorf("%w: %w", shared.ErrUnauthorized, apiErr))
		case apiErr.Temporary():
			return nil, retry.Retryable(apiErr)
		default:
			return nil, retry.Permanent(apiErr)
		}
	}

	records, err := decodeUsers(body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return records, nil
}

// usersURL appends a timestamp parameter so intermediaries never serve a
// cached listing.
func (c *Client) usersURL() string {
	params := url.Values{}
	params.Set("_t", strconv.FormatInt(c.now().UnixNano(), 10))
	return strings.TrimRight(c.config.BaseURL, "/") + "/users?" + params.Encode()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Retryable(fmt.Errorf("%w: %w", shared.ErrTimeout, err))
	}
	return retry.Retryable(fmt.Errorf("http request: %w", err))
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
