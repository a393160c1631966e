// Package upstream forwards requests to the REST data service and the
// prediction service and returns their raw status and body.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/canteen-ops/pkg/utils"
)

// logExcerptLen bounds how much of a body is written to the logs
const logExcerptLen = 500

// Options configures an upstream client
type Options struct {
	// Name labels log lines, e.g. "ords" or "prediction"
	Name string
	// AuthToken is sent as a bearer token on endpoints that request it
	AuthToken string
	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool
	// Timeout of zero means no client-side timeout
	Timeout time.Duration
}

// Request describes one forwarded call
type Request struct {
	Method string
	// Endpoint is the configured base URL without a query string
	Endpoint string
	// RawQuery is appended verbatim. Callers own its encoding.
	RawQuery string
	Body     []byte
	// WithAuth injects the bearer token when one is configured
	WithAuth bool
}

// Response is the upstream reply, relayed as-is
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the upstream answered 2xx
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client forwards requests to one upstream service
type Client struct {
	name       string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new upstream client
func NewClient(opts Options, logger *zap.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
		logger.Warn("TLS certificate verification disabled for upstream",
			zap.String("upstream", opts.Name))
	}

	return &Client{
		name:      opts.Name,
		authToken: opts.AuthToken,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		logger: logger,
	}
}

// Do forwards the request. A non-nil error means the call never produced an
// HTTP response (DNS, refused connection, timeout, unreadable body).
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := buildURL(req.Endpoint, req.RawQuery)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, "", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Set the URL directly so RawQuery is sent exactly as built
	httpReq.URL = target
	httpReq.Host = target.Host
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")
	if req.WithAuth && c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.logger.Debug("Forwarding upstream request",
		zap.String("upstream", c.name),
		zap.String("method", req.Method),
		zap.String("url", target.String()),
		zap.String("body", utils.ExcerptBytes(req.Body, logExcerptLen)))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Upstream request failed",
			zap.String("upstream", c.name),
			zap.String("method", req.Method),
			zap.String("url", target.String()),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read upstream body",
			zap.String("upstream", c.name),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read upstream body: %w", err)
	}

	c.logger.Info("Upstream response",
		zap.String("upstream", c.name),
		zap.String("method", req.Method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.String("body", utils.ExcerptBytes(data, logExcerptLen)))

	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func buildURL(endpoint, rawQuery string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream endpoint %q: %w", endpoint, err)
	}
	u.RawQuery = rawQuery
	return u, nil
}
