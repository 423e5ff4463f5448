// Package restclient talks to the auth backend over JSON/HTTP.
package restclient

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
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

const (
	DefaultTimeout = 15 * time.Second

	// cap on error bodies copied into messages
	maxErrorBody = 512
)

var _ core.AuthAPI = (*Client)(nil)

// Client implements core.AuthAPI. It never retries; a failed call is
// reported to the caller as is.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     log.Nop(),
	}
}

// WithLogger sets the request logger
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.Logger = log.OrNop(l)
	return c
}

func (c *Client) Call(ctx context.Context, ep core.Endpoint, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, c.BaseURL+ep.Path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.DebugContext(ctx, "backend call failed",
			"endpoint", ep.Key, "request_id", requestID, "error", err)
		return fmt.Errorf("%w: %s %s: %v", core.ErrNetwork, ep.Method, ep.Path, err)
	}
	defer resp.Body.Close()

	c.Logger.DebugContext(ctx, "backend call",
		"endpoint", ep.Key,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	return parseResponse(resp, out)
}

// parseResponse unwraps the {success, message, data} envelope into out.
func parseResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", core.ErrNetwork, err)
	}

	var env core.Envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(truncate(string(raw), maxErrorBody))
		}
		return &core.APIError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedResponse, decodeErr)
	}
	if !env.Success {
		return &core.APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsNetwork reports whether err is a transport failure rather than a backend answer.
func IsNetwork(err error) bool {
	return errors.Is(err, core.ErrNetwork)
}
