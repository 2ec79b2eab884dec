package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/brettboylen/social-listener/models"
)

const (
	DefaultBaseURL     = "https://api.vetric.io"
	DefaultTimeout     = 45 * time.Second
	DefaultMinInterval = 500 * time.Millisecond
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second

	maxErrorBody = 500
	// Retry-After is honoured up to this multiple of the largest backoff
	retryAfterCap = 4
)

// status codes worth another attempt
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ConfigError is raised before any network call for an unknown platform or a
// platform without credentials. It is never retried.
type ConfigError struct {
	Platform string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider configuration error for platform %q: %s", e.Platform, e.Reason)
}

// APIError is a non-2xx response from the upstream API
type APIError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Retryable reports whether the status code is in the transient set
func (e *APIError) Retryable() bool {
	return retryableStatus[e.StatusCode]
}

// Options configures a Client
type Options struct {
	BaseURL     string
	APIKeys     map[string]string
	MinInterval time.Duration
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

// Client is an authenticated client for the social data provider API.
// One client is shared by every adapter goroutine.
type Client struct {
	baseURL     string
	apiKeys     map[string]string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoffBase time.Duration
	log         *logrus.Logger
}

// NewClient creates a new provider API client
func NewClient(opts Options, log *logrus.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}

	// a single token with no burst spaces every request by at least MinInterval
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	keys := make(map[string]string, len(opts.APIKeys))
	for platform, key := range opts.APIKeys {
		if key != "" {
			keys[platform] = key
		}
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKeys:     keys,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		log:         log,
	}
}

// Platforms returns the platforms this client holds credentials for, sorted
func (c *Client) Platforms() []string {
	platforms := make([]string, 0, len(c.apiKeys))
	for p := range c.apiKeys {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// Get issues a GET against {base}/{platform}/v1/{path}
func (c *Client) Get(ctx context.Context, platform, path string, params url.Values) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, platform, path, params, nil)
}

// Post issues a read-only POST search with a JSON body
func (c *Client) Post(ctx context.Context, platform, path string, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, platform, path, nil, payload)
}

// endpoint resolves platform to its base URL and checks credentials
func (c *Client) endpoint(platform, path string, params url.Values) (string, string, error) {
	if !models.IsKnownPlatform(platform) {
		return "", "", &ConfigError{Platform: platform, Reason: "unknown platform"}
	}
	key, ok := c.apiKeys[platform]
	if !ok {
		return "", "", &ConfigError{Platform: platform, Reason: "no API key configured"}
	}

	endpoint := fmt.Sprintf("%s/%s/v1/%s", c.baseURL, platform, strings.TrimLeft(path, "/"))
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return endpoint, key, nil
}

func (c *Client) do(ctx context.Context, method, platform, path string, params url.Values, payload []byte) (gjson.Result, error) {
	endpoint, key, err := c.endpoint(platform, path, params)
	if err != nil {
		return gjson.Result{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return gjson.Result{}, err
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", key)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.log.WithFields(logrus.Fields{
			"platform": platform,
			"method":   method,
			"path":     path,
			"attempt":  attempt,
		}).Debug("Calling provider API")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return gjson.Result{}, ctx.Err()
			}
			lastErr = fmt.Errorf("failed to execute request: %w", err)
			if attempt < c.maxAttempts {
				if err := c.backoff(ctx, attempt, 0, lastErr); err != nil {
					return gjson.Result{}, err
				}
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return gjson.Result{}, fmt.Errorf("failed to read response: %w", readErr)
			}
			if len(bytes.TrimSpace(data)) == 0 {
				return gjson.Result{}, nil
			}
			if !gjson.ValidBytes(data) {
				return gjson.Result{}, fmt.Errorf("failed to decode response from %s: invalid JSON", endpoint)
			}
			return gjson.ParseBytes(data), nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody), URL: endpoint}
		if !apiErr.Retryable() {
			return gjson.Result{}, apiErr
		}
		lastErr = apiErr
		if attempt < c.maxAttempts {
			retryAfter := time.Duration(getHeaderAsInt(resp.Header, "Retry-After")) * time.Second
			if err := c.backoff(ctx, attempt, retryAfter, apiErr); err != nil {
				return gjson.Result{}, err
			}
		}
	}

	return gjson.Result{}, lastErr
}

// retryDelay is base*2^(attempt-1), or the server's Retry-After when longer,
// clamped to retryAfterCap times the last backoff step
func (c *Client) retryDelay(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.backoffBase << (attempt - 1)
	if retryAfter > delay {
		ceiling := retryAfterCap * (c.backoffBase << (max(c.maxAttempts, 1) - 1))
		delay = min(retryAfter, max(ceiling, delay))
	}
	return delay
}

// backoff sleeps for retryDelay or until ctx is done
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration, cause error) error {
	delay := c.retryDelay(attempt, retryAfter)

	c.log.WithFields(logrus.Fields{
		"attempt": attempt,
		"delay":   delay.String(),
	}).WithError(cause).Warn("Transient provider error, backing off")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsConfigError reports whether err is a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func getHeaderAsInt(header http.Header, name string) int {
	value := header.Get(name)
	if value == "" {
		return 0
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return intValue
}
