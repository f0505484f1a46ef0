package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/api/dto"
	"github.com/spec-kit/occurrence-client/internal/observability"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const (
	headerRequestID = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the bearer token for the next request, "" when none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithDoer replaces the default http.Client.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithTokenSource sets where the bearer token is read from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithMetrics records per-route request and error counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each request. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to the occurrence REST backend.
type Client struct {
	baseURL string
	doer    Doer
	tokens  TokenSource
	metrics *observability.Metrics
	logger  *zap.Logger
	timeout time.Duration
}

// New builds a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokens returns a copy of c that authenticates with ts. The admin and
// citizen sessions each get their own copy.
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL resolves a stored image path to a fetchable URL.
func (c *Client) ImageURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/images/" + strings.TrimLeft(path, "/")
}

func (c *Client) sendJSON(ctx context.Context, route, method, path string, in any) ([]byte, error) {
	if in == nil {
		return c.send(ctx, route, method, path, nil, "")
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return c.send(ctx, route, method, path, buf, "application/json")
}

// send performs one request and returns the body of a 2xx response. Non-2xx
// responses become DomainErrors carrying the server message when present.
func (c *Client) send(ctx context.Context, route, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.authorize(ctx, req)

	logger := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("route", route),
	)

	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		c.metrics.RecordError(route, method, apperrors.CodeNetwork)
		logger.Warn("request failed", zap.Error(err))
		return nil, apperrors.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	duration := time.Since(start)
	c.metrics.RecordRequest(route, method, resp.StatusCode, duration)
	logger.Debug("request completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var body dto.ErrorResponse
		_ = json.Unmarshal(payload, &body)
		de := apperrors.FromStatus(resp.StatusCode, body.Text())
		c.metrics.RecordError(route, method, de.Code)
		return nil, de
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordError(route, method, apperrors.CodeNetwork)
		return nil, apperrors.NewNetworkError(err)
	}
	return payload, nil
}

// authorize attaches the bearer token when one is stored. A token that cannot
// be read is treated as absent.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn("load token", zap.Error(err))
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

type validatable interface {
	Validate() error
}

// decode unmarshals a required response body and validates it.
func decode(what string, payload []byte, out validatable) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return apperrors.NewDecodeError(what, io.ErrUnexpectedEOF)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.NewDecodeError(what, err)
	}
	if err := out.Validate(); err != nil {
		return apperrors.NewDecodeError(what, err)
	}
	return nil
}

// decodeOccurrenceOptional handles endpoints whose body may or may not echo
// the record. ok is false when no record was returned.
func decodeOccurrenceOptional(what string, payload []byte) (*dto.OccurrenceResponse, bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false, nil
	}
	var out dto.OccurrenceResponse
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, false, apperrors.NewDecodeError(what, err)
	}
	if out.ID == "" {
		return nil, false, nil
	}
	if err := out.Validate(); err != nil {
		return nil, false, apperrors.NewDecodeError(what, err)
	}
	return &out, true, nil
}
