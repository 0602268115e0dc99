package agent

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// Client posts keepalive payloads to the server API.
type Client struct {
	http *vsenthttp.Client
	url  *url.URL

	apiKey string
}

// ClientConfig is the agent HTTP client configuration structure.
type ClientConfig struct {
	// ServerURL is the base URL of the server, e.g.
	// "https://sentinel.example.org".  It must not be nil.
	ServerURL *url.URL

	// APIPath is the base path of the API, e.g. "/api/v1".
	APIPath string

	// APIKey is the value sent in the X-API-Key header.  Empty means no
	// header.
	APIKey string

	// CAPath is the path to an additional PEM CA certificate to trust.  Empty
	// means the system pool only.
	CAPath string

	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool

	// Timeout is the timeout of one keepalive POST.  It must be positive.
	Timeout time.Duration
}

// NewClient returns a new properly initialized *Client.  c must not be nil.
func NewClient(c *ClientConfig) (cli *Client, err error) {
	tlsConf, err := newTLSConfig(c.CAPath, c.InsecureSkipVerify)
	if err != nil {
		return nil, fmt.Errorf("agent client: %w", err)
	}

	return &Client{
		http: vsenthttp.NewClient(&vsenthttp.ClientConfig{
			TLSConfig: tlsConf,
			Timeout:   c.Timeout,
		}),
		url:    c.ServerURL.JoinPath(c.APIPath, "keepalive"),
		apiKey: c.APIKey,
	}, nil
}

// newTLSConfig builds the client TLS configuration.  It returns nil when no
// customization is needed.
func newTLSConfig(caPath string, insecure bool) (conf *tls.Config, err error) {
	if caPath == "" && !insecure {
		return nil, nil
	}

	conf = &tls.Config{
		// #nosec G402 -- The user explicitly opted in via the environment.
		InsecureSkipVerify: insecure,
	}

	if caPath != "" {
		// #nosec G304 -- Trust the file path given in the environment.
		pem, readErr := os.ReadFile(caPath)
		if readErr != nil {
			return nil, fmt.Errorf("reading ca file: %w", readErr)
		}

		pool, poolErr := x509.SystemCertPool()
		if poolErr != nil {
			pool = x509.NewCertPool()
		}

		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %q: no valid certificates", caPath)
		}

		conf.RootCAs = pool
	}

	return conf, nil
}

// SendKeepalive posts one keepalive payload.
func (cli *Client) SendKeepalive(ctx context.Context, k *vsent.Keepalive) (err error) {
	b, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encoding keepalive: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.url.String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("creating keepalive request: %w", err)
	}

	req.Header.Set(httphdr.ContentType, vsenthttp.HdrValApplicationJSON)
	req.Header.Set(httphdr.UserAgent, vsenthttp.UserAgent())
	if cli.apiKey != "" {
		req.Header.Set(vsenthttp.HdrAPIKey, cli.apiKey)
	}

	resp, err := cli.http.HTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("sending keepalive: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	err = vsenthttp.CheckStatus(resp, http.StatusOK)
	if err != nil {
		return fmt.Errorf("sending keepalive: %w", err)
	}

	return nil
}
