// ABOUTME: Authenticated HTTP client for the payment backend with per-user tokens
// ABOUTME: Implements auth-on-demand, 401 re-authentication, and exponential retry

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	pathLogin      = "/afrik/login"
	pathRegister   = "/afrik/register"
	pathCheckPhone = "/afrik/check-phone"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.afrikmoney.com/api"

// ErrUserNotFound is returned by Authenticate when the backend has no account
// for the given user.
var ErrUserNotFound = errors.New("user not found")

// Error is a normalized backend failure. Status is 0 for transport errors.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
}

// Result is the uniform outcome of one backend call.
type Result struct {
	OK     bool
	Status int
	Body   []byte
	Err    *Error
}

// clientError reports a 4xx that must not be retried.
func (r *Result) clientError() bool {
	return r.Status >= 400 && r.Status < 500 && r.Status != http.StatusUnauthorized
}

func (r *Result) error() error {
	if r.Err != nil {
		return r.Err
	}
	return &Error{Status: r.Status, Message: "unknown error"}
}

// Config holds client settings.
type Config struct {
	BaseURL        string
	MaxRetries     int
	RetryBaseDelay time.Duration
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client talks to the backend on behalf of WhatsApp users.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	tokens map[string]string
}

// New creates a client. Zero values in cfg fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		client:     httpClient,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		logger:     logger.With("component", "backend"),
		tokens:     make(map[string]string),
	}
}

func (c *Client) token(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[userID]
	return t, ok
}

func (c *Client) setToken(userID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[userID] = token
}

// ClearToken forgets the cached token for a user.
func (c *Client) ClearToken(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, userID)
}

// HasToken reports whether a token is cached for the user.
func (c *Client) HasToken(userID string) bool {
	_, ok := c.token(userID)
	return ok
}

func isAuthEndpoint(endpoint string) bool {
	switch endpoint {
	case pathLogin, pathRegister, pathCheckPhone:
		return true
	}
	return false
}

// request performs a single call. userID may be empty for anonymous calls.
func (c *Client) request(ctx context.Context, method, endpoint string, payload any, userID string) *Result {
	if userID != "" && !isAuthEndpoint(endpoint) && !c.HasToken(userID) {
		if _, err := c.Authenticate(ctx, userID); err != nil {
			c.logger.Warn("initial authentication failed", "user", userID, "error", err)
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &Result{Err: &Error{Message: fmt.Sprintf("marshaling request: %v", err)}}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return &Result{Err: &Error{Message: fmt.Sprintf("creating request: %v", err)}}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		if token, ok := c.token(userID); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "method", method, "endpoint", endpoint, "error", err)
		return &Result{Err: &Error{Message: err.Error()}}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{Status: resp.StatusCode, Err: &Error{Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Result{OK: true, Status: resp.StatusCode, Body: respBody}
	}

	msg := errorMessage(respBody, resp.Status)
	c.logger.Error("backend request rejected",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"message", msg,
	)

	if resp.StatusCode == http.StatusUnauthorized && userID != "" && endpoint != pathLogin {
		c.logger.Info("token expired, re-authenticating", "user", userID)
		c.ClearToken(userID)
		if _, err := c.Authenticate(ctx, userID); err != nil {
			c.logger.Error("re-authentication failed", "user", userID, "error", err)
		}
	}

	return &Result{
		Status: resp.StatusCode,
		Body:   respBody,
		Err:    &Error{Status: resp.StatusCode, Message: msg},
	}
}

// requestWithRetry retries transient failures with exponential backoff.
func (c *Client) requestWithRetry(ctx context.Context, method, endpoint string, payload any, userID string) *Result {
	var last *Result
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		res := c.request(ctx, method, endpoint, payload, userID)
		if res.OK {
			return res
		}
		last = res

		if res.clientError() {
			break
		}

		if attempt < c.maxRetries {
			wait := c.baseDelay * time.Duration(1<<attempt)
			c.logger.Debug("retrying backend call",
				"endpoint", endpoint,
				"attempt", attempt,
				"max", c.maxRetries,
				"wait", wait,
			)
			if err := sleep(ctx, wait); err != nil {
				return &Result{Status: last.Status, Body: last.Body, Err: &Error{Status: last.Status, Message: err.Error()}}
			}
		}
	}
	return last
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errorMessage extracts {"message": "..."} from an error body.
func errorMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fallback
}

// decode unmarshals body into v, unwrapping a top-level "data" member.
func decode(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(trimmed, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			trimmed = env.Data
		}
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
