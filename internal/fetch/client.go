package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// a single remote strategy issues one request at a time, so the pool stays small
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds a successful result of [Client.Get].
type Response struct {
	// Body is the complete response body decoded as UTF-8 text, at most 1MB.
	Body string

	// StatusCode is the HTTP status code (always 2xx).
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration
}

// Client issues GET requests relative to a fixed base URL.
//
// Client is safe for concurrent use; its configuration is read-only after
// construction.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	timeout    time.Duration
}

// NewClient creates a [Client] for baseURL.
//
// The base URL must be absolute with an http or https scheme. Paths passed to
// [Client.Get] are resolved beneath the base path, so "https://host/api" and
// "https://host/api/" behave the same.
//
// A zero timeout means requests are bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("base url must have a host")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative, got %s", timeout)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return &Client{
		httpClient: &http.Client{
			// no client-wide timeout - requests are bounded per call
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL: u,
		timeout: timeout,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL returns the absolute URL that [Client.Get] requests for path.
//
// path may carry a query string ("get?x=1"). It is always resolved beneath
// the base URL, never as an absolute URL of its own.
func (c *Client) URL(path string) string {
	path = strings.TrimPrefix(path, "/")
	ref, err := url.Parse(path)
	if err != nil || ref.Scheme != "" || ref.Host != "" {
		ref = &url.URL{Path: path}
	}
	return c.baseURL.ResolveReference(ref).String()
}

// Get performs GET {base}/{path} and returns the body as text.
//
// Transport failures return a [*TransportError]; non-2xx responses return a
// [*StatusError]. A successful body over 1MB is never truncated: it fails
// with a [*TransportError] wrapping [ErrBodyTooLarge]. No custom headers are
// sent.
func (c *Client) Get(ctx context.Context, path string) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.URL(path)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Response{}, &TransportError{URL: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, &TransportError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells a full body from an oversized one
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return Response{}, &TransportError{URL: target, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       truncate(body, maxErrorBody),
		}
	}

	if len(body) > maxResponseBodySize {
		return Response{}, &TransportError{
			URL: target,
			Err: fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxResponseBodySize),
		}
	}

	return Response{
		Body:       strings.ToValidUTF8(string(body), "\uFFFD"),
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}, nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times and on a nil Client. The client remains usable
// afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
