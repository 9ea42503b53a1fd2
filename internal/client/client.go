// Package client talks to the remote backtest service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/newthinker/zhunle/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// DefaultMaxRetries is how often a failed GET is retried.
	DefaultMaxRetries = 2

	maxBodyBytes = 8 << 20
)

// Recorder receives upstream call metrics.
type Recorder interface {
	RecordUpstream(endpoint, status string, duration float64)
}

// Client is a backtest service client with rate limiting, retries for
// idempotent requests and a short-lived response cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	cache      *responseCache
	validate   *validator.Validate
	logger     *zap.Logger
	recorder   Recorder
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the request rate (requests per second).
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// WithMaxRetries sets how often a failed GET is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithCache enables the response cache. A zero ttl disables it.
func WithCache(ttl time.Duration, maxEntries int) Option {
	return func(c *Client) {
		c.cache = newResponseCache(ttl, maxEntries)
	}
}

// WithLogger sets a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// New creates a client for the service at baseURL, e.g.
// "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxRetries: DefaultMaxRetries,
		validate:   validator.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func backtestPath(id string) string {
	return "/backtest/" + url.PathEscape(id)
}

// GetBacktest fetches a backtest result, served from cache when fresh.
func (c *Client) GetBacktest(ctx context.Context, id string) (*core.BacktestResult, error) {
	if id == "" {
		return nil, core.WrapError(core.ErrInvalidRequest, errors.New("empty backtest id"))
	}

	path := backtestPath(id)
	body, err := c.get(ctx, "backtest", path, true)
	if err != nil {
		return nil, err
	}

	result, err := c.decodeResult(body)
	if err != nil {
		c.cache.invalidate(path)
		return nil, err
	}
	return result, nil
}

// Refresh drops the cached copy of a backtest so the next GetBacktest
// goes to the service.
func (c *Client) Refresh(id string) {
	c.cache.invalidate(backtestPath(id))
}

// CreateBacktest submits a new backtest. The result is cached under its
// id so the page it redirects to renders without a second round-trip.
func (c *Client) CreateBacktest(ctx context.Context, req CreateRequest) (*core.BacktestResult, error) {
	if req.PriceAdjust == "" {
		req.PriceAdjust = "post"
	}
	if err := c.validate.Struct(req); err != nil {
		return nil, core.WrapError(core.ErrInvalidRequest, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	body, err := c.post(ctx, "create_backtest", "/backtest", payload)
	if err != nil {
		return nil, err
	}

	result, err := c.decodeResult(body)
	if err != nil {
		return nil, err
	}
	c.cache.set(backtestPath(result.ID), body)
	return result, nil
}

// GetRank fetches a leaderboard.
func (c *Client) GetRank(ctx context.Context, q RankQuery) (*RankResponse, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(q.Days))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Kind != RankHot {
		params.Set("k", strconv.Itoa(q.K))
	}
	path := "/rank/" + url.PathEscape(string(q.Kind)) + "?" + params.Encode()

	body, err := c.get(ctx, "rank", path, true)
	if err != nil {
		return nil, err
	}

	var resp RankResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.WrapError(core.ErrInvalidResponse, err)
	}
	return &resp, nil
}

// GetQuota fetches today's remaining backtest quota. Never cached.
func (c *Client) GetQuota(ctx context.Context) (*Quota, error) {
	body, err := c.get(ctx, "quota", "/quota", false)
	if err != nil {
		return nil, err
	}

	var q Quota
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, core.WrapError(core.ErrInvalidResponse, err)
	}
	return &q, nil
}

// RandomPick asks the service for a random stock suggestion.
func (c *Client) RandomPick(ctx context.Context) (*RandomPick, error) {
	body, err := c.get(ctx, "random", "/random", false)
	if err != nil {
		return nil, err
	}

	var p RandomPick
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, core.WrapError(core.ErrInvalidResponse, err)
	}
	return &p, nil
}

func (c *Client) decodeResult(body []byte) (*core.BacktestResult, error) {
	var result core.BacktestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, core.WrapError(core.ErrInvalidResponse, err)
	}
	if err := c.validate.Struct(result); err != nil {
		return nil, core.WrapError(core.ErrInvalidResponse, err)
	}
	for _, item := range result.Items {
		if item.Grade != "" && !item.Grade.IsValid() {
			// Kept in the table, left off the grade board.
			c.logger.Warn("unknown grade from backtest service",
				zap.String("bt_id", result.ID),
				zap.String("code", item.Code),
				zap.String("grade", string(item.Grade)),
			)
		}
	}
	return &result, nil
}

// get performs a GET with retries. Server errors and transport failures
// are retried; client errors are not.
func (c *Client) get(ctx context.Context, endpoint, path string, cached bool) ([]byte, error) {
	if cached {
		if body, ok := c.cache.get(path); ok {
			c.logger.Debug("backtest service cache hit", zap.String("path", path))
			return body, nil
		}
	}

	var body []byte
	operation := func() error {
		var err error
		body, err = c.do(ctx, endpoint, http.MethodGet, path, nil)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, classify(endpoint, err)
	}

	if cached {
		c.cache.set(path, body)
	}
	return body, nil
}

// post performs a single attempt; creating a backtest consumes quota.
func (c *Client) post(ctx context.Context, endpoint, path string, payload []byte) ([]byte, error) {
	body, err := c.do(ctx, endpoint, http.MethodPost, path, payload)
	if err != nil {
		return nil, classify(endpoint, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, "error", start)
		c.logger.Warn("backtest service unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(endpoint, "error", start)
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("backtest service request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(endpoint, strconv.Itoa(resp.StatusCode), start)
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: detail(body)}
	}
	c.observe(endpoint, "ok", start)
	return body, nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordUpstream(endpoint, status, time.Since(start).Seconds())
	}
}

// StatusError is a non-2xx answer from the backtest service.
type StatusError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return e.Detail
}

// detail extracts the service's {"detail": ...} message, falling back to
// the raw body.
func detail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return msg
	}
	return string(payload.Detail)
}

func classify(endpoint string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusNotFound && endpoint == "backtest" {
			return core.WrapError(core.ErrBacktestNotFound, se)
		}
		if se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnprocessableEntity {
			return core.WrapError(core.ErrInvalidRequest, se)
		}
		return core.WrapError(core.ErrUpstreamFailed, se)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.WrapError(core.ErrUpstreamTimeout, err)
	}
	return core.WrapError(core.ErrUpstreamFailed, err)
}

// UserMessage returns the text to show a user for err: the service's own
// detail when it sent one, the error's message otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Message
	}
	return err.Error()
}
