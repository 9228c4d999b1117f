package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/metrics"
)

const defaultRequestTimeout = 60 * time.Second

// Payload is a decoded JSON object returned by the C12 API.
type Payload map[string]json.RawMessage

// Has reports whether key is present in the payload.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Field decodes a single key into out.
func (p Payload) Field(key string, out any) error {
	raw, ok := p[key]
	if !ok {
		return fmt.Errorf("%w: key %q missing from response", domain.ErrAPI, key)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %q: %v", domain.ErrAPI, key, err)
	}
	return nil
}

// Client is the facade for the REST API of the C12 simulator. It is safe
// for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a client for the API rooted at baseURL, authenticated with token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: base url %q needs a scheme and a host", domain.ErrInvalidArgument, baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     zap.NewNop(),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the bearer token currently in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// URL resolves an API path against the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// DoRequest performs one authenticated call. params become the JSON body
// for POST and the query string for every other method; nil values are
// dropped from query strings. The Authorization header always wins over
// headers passed by the caller.
func (c *Client) DoRequest(ctx context.Context, rawURL, method string, params map[string]any, headers map[string]string) (Payload, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodPost, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: wrong parameter for method argument: %q", domain.ErrInvalidArgument, method)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", domain.ErrInvalidArgument, err)
	}

	var body io.Reader
	if method == http.MethodPost {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			if v == nil {
				continue
			}
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token())

	c.logger.Debug("Calling C12 API",
		zap.String("method", method),
		zap.String("url", u.String()),
		zap.Any("params", params),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(u.Path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(u.Path, "transport").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrAPI, err)
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(u.Path, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug("C12 API response", zap.String("url", u.String()), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.HTTPError{Method: method, URL: u.String(), StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrAPI, err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty response body from %s", domain.ErrAPI, u.Path)
	}

	c.logger.Debug("C12 API response body", zap.ByteString("body", trimmed))

	var payload Payload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrAPI, err)
	}
	return payload, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]any) (Payload, error) {
	return c.DoRequest(ctx, c.URL(path), http.MethodGet, params, nil)
}
