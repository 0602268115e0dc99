package vsenthttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AdguardTeam/golibs/httphdr"
)

// Client is a wrapper around http.Client.
type Client struct {
	http      *http.Client
	userAgent string
}

// ClientConfig is the configuration structure for Client.
type ClientConfig struct {
	// TLSConfig is the optional TLS configuration for all requests.
	TLSConfig *tls.Config

	// Timeout is the timeout for all requests.
	Timeout time.Duration
}

// NewClient returns a new client.  conf must not be nil.
func NewClient(conf *ClientConfig) (c *Client) {
	var transport http.RoundTripper
	if conf.TLSConfig != nil {
		transport = &http.Transport{
			TLSClientConfig: conf.TLSConfig,
		}
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   conf.Timeout,
		},
		userAgent: UserAgent(),
	}
}

// Get is a wrapper around http.Client.Get.
//
// When err is nil, resp always contains a non-nil resp.Body.  Caller should
// close resp.Body when done reading from it.
func (c *Client) Get(ctx context.Context, u *url.URL) (resp *http.Response, err error) {
	return c.do(ctx, http.MethodGet, u, "", nil)
}

// Post is a wrapper around http.Client.Post.
//
// When err is nil, resp always contains a non-nil resp.Body.  Caller should
// close resp.Body when done reading from it.
func (c *Client) Post(
	ctx context.Context,
	u *url.URL,
	contentType string,
	body io.Reader,
) (resp *http.Response, err error) {
	return c.do(ctx, http.MethodPost, u, contentType, body)
}

// do is a wrapper around http.Client.Do.
func (c *Client) do(
	ctx context.Context,
	method string,
	u *url.URL,
	contentType string,
	body io.Reader,
) (resp *http.Response, err error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}

	if contentType != "" {
		req.Header.Set(httphdr.ContentType, contentType)
	}

	req.Header.Set(httphdr.UserAgent, c.userAgent)

	return c.http.Do(req)
}

// HTTPClient returns the underlying *http.Client for callers that need to
// build custom requests while sharing the transport and timeout.
func (c *Client) HTTPClient() (hc *http.Client) {
	return c.http
}
