// Package upbank is a small client for the Up banking REST API.
//
// It covers exactly what the summariser needs: paginated transaction
// listings, the category PATCH, ping, accounts and the category tree.
// Transient failures (network errors, 429 and 5xx) are retried with
// exponential backoff.
package upbank

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
	"strings"
	"time"

	"upspend/internal/log"
)

var (
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status int
	Reason string
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("up api: %d %s: %s", e.Status, e.Reason, body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	maxRetries int
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleep replaces the backoff sleeper; tests use it to avoid waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		maxRetries: 3,
		logger:     log.Nop(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   30 * time.Second,
			Transport: log.Transport(c.logger, nil),
		}
	}
	return c
}

// NewHTTPClient builds the pooled client used against the API, logging each
// request through the given logger.
func NewHTTPClient(logger *log.Logger, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: log.Transport(logger, transport),
		Timeout:   timeout,
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << uint(attempt)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
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

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF")
}

// endpointURL joins a path such as "/transactions" onto the base URL.
func (c *Client) endpointURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do sends a request built by newReq, retrying transient failures, and
// returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := exponentialBackoff(attempt - 1)
			c.logger.WarnContext(ctx, "Retrying Up API request",
				log.FieldAttempt, attempt,
				"wait", wait.String(),
				log.FieldError, lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.once(ctx, newReq)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) once(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	req, err := newReq()
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status: resp.StatusCode,
			Reason: http.StatusText(resp.StatusCode),
			Body:   string(body),
		}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	body, err := c.do(ctx, func() (*http.Request, error) {
		u := rawURL
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		return http.NewRequest(http.MethodGet, u, nil)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	return nil
}

// PatchCategory sets the category of one transaction.
func (c *Client) PatchCategory(ctx context.Context, txID, categoryID string) error {
	if strings.TrimSpace(txID) == "" {
		return errors.New("patch category: empty transaction id")
	}
	payload, err := json.Marshal(categoryPatch{Data: resourceRef{Type: "categories", ID: categoryID}})
	if err != nil {
		return fmt.Errorf("marshal category patch: %w", err)
	}
	target := c.endpointURL("/transactions/" + url.PathEscape(txID) + "/relationships/category")
	_, err = c.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodPatch, target, bytes.NewReader(payload))
	})
	if err != nil {
		return fmt.Errorf("patch category of %s: %w", txID, err)
	}
	c.logger.InfoContext(ctx, "Transaction category corrected",
		log.FieldTxID, txID,
		log.FieldCategory, categoryID)
	return nil
}

// Correct implements the fixer's correction port with a direct PATCH.
func (c *Client) Correct(ctx context.Context, txID, categoryID string) error {
	return c.PatchCategory(ctx, txID, categoryID)
}

// Ping returns the status emoji of the util/ping endpoint.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var resp pingResponse
	if err := c.getJSON(ctx, c.endpointURL("/util/ping"), nil, &resp); err != nil {
		return "", fmt.Errorf("ping: %w", err)
	}
	return resp.Meta.StatusEmoji, nil
}
