package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/observability"
)

const maxResponseBytes = 16 << 20

var ErrNoProfile = errors.New("no_profile")

// APIError carries the decoded {"error": ...} body of a failed call.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market api %d: %s", e.Status, e.Message)
}

// Client performs exactly one round trip per call. It holds no state beyond
// its configuration.
type Client struct {
	baseURL       string
	sessionCookie string
	httpClient    *http.Client
	logger        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSessionCookie forwards a raw "name=value" cookie on every request.
func WithSessionCookie(cookie string) Option {
	return func(c *Client) { c.sessionCookie = strings.TrimSpace(cookie) }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("missing MARKET_API_URL")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do sends body as JSON and, when field is set, decodes that field of the
// response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body any, field string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.sessionCookie != "" {
		req.Header.Set("Cookie", c.sessionCookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if field == "" || out == nil {
		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s %s: decode envelope: %w", method, path, err)
	}
	payload, ok := envelope[field]
	if !ok {
		return fmt.Errorf("%s %s: missing %q in response", method, path, field)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s %s: decode %s: %w", method, path, field, err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Message: payload.Error}
}

// keepValid drops records the backend sent in a shape we cannot use.
func keepValid[T market.Validator](c *Client, what string, items []T) []T {
	kept, errs := market.KeepValid(items)
	for _, err := range errs {
		c.logger.Warn("dropping invalid record", "collection", what, "err", err)
	}
	return kept
}

// keyPath renders a compound key as two path segments.
func keyPath(k market.Key) string {
	return strconv.FormatInt(k.ID, 10) + "/" + url.PathEscape(k.UserID)
}
