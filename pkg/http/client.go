package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/polygonid/academic-bridge/internal/log"
)

// StatusError is returned when the remote side answered with a non 2xx status code
type StatusError struct {
	Code int
	Body []byte
}

// Error satisfies the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("http request failed with status %v, error: %v", e.Code, string(e.Body))
}

// StatusCode returns the status code carried by err, or 0 if err is not a *StatusError
func StatusCode(err error) int {
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.Code
	}
	return 0
}

// Option configures a Client
type Option func(*Client)

// WithHeader adds a static header to every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// WithRetry retries idempotent requests (GET) up to retryMax times on network errors and 5xx responses
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		rc := retryablehttp.NewClient()
		rc.RetryMax = retryMax
		rc.RetryWaitMin = waitMin
		rc.RetryWaitMax = waitMax
		rc.Logger = nil
		rc.HTTPClient.Timeout = c.base.Timeout
		c.idempotent = http.Client{
			Timeout:   c.base.Timeout,
			Transport: &retryablehttp.RoundTripper{Client: rc},
		}
	}
}

// Client represents default http client that can be used to send requests to third party services
type Client struct {
	base       http.Client
	idempotent http.Client
	headers    http.Header
}

// NewClient returns new instance of custom client
func NewClient(c http.Client, opts ...Option) *Client {
	cli := &Client{
		base:       c,
		idempotent: c,
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Post sends a post request to url. Post requests are never retried.
func (c *Client) Post(ctx context.Context, url string, req []byte) ([]byte, error) {
	var body io.Reader = http.NoBody
	if req != nil {
		body = bytes.NewBuffer(req)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	c.addHeaders(ctx, request)

	return executeRequest(ctx, &c.base, request)
}

// Get sends a get request to url
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	c.addHeaders(ctx, req)

	return executeRequest(ctx, &c.idempotent, req)
}

// addHeaders adds the request id and the static headers to the request
func (c *Client) addHeaders(ctx context.Context, r *http.Request) {
	r.Header.Add("Content-Type", "application/json")
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		r.Header.Add(middleware.RequestIDHeader, requestID)
	}
	for k, v := range c.headers {
		r.Header[k] = v
	}
}

// executeRequest contains common logic of request execution
func executeRequest(ctx context.Context, c *http.Client, r *http.Request) ([]byte, error) {
	resp, err := c.Do(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error(ctx, "can not close body", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}

	return body, nil
}
