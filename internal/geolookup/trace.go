package geolookup

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// TraceResult is the parsed output of the DNS-trace endpoint.  Loc is a
// two-letter ISO country code of the data center that served the request;
// Colo is its three-letter identifier.
type TraceResult struct {
	IP   string
	Loc  string
	Colo string
}

// Tracer fetches and parses the well-known plain-text trace endpoint.
type Tracer struct {
	http *vsenthttp.Client
	url  *url.URL
}

// DefaultTraceURL is the trace endpoint used when none is configured.
const DefaultTraceURL = "https://one.one.one.one/cdn-cgi/trace"

// NewTracer returns a new tracer for the given endpoint URL.  If rawURL is
// empty, [DefaultTraceURL] is used.
func NewTracer(rawURL string, timeout time.Duration) (t *Tracer, err error) {
	if rawURL == "" {
		rawURL = DefaultTraceURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("trace url: %w", err)
	}

	return &Tracer{
		http: vsenthttp.NewClient(&vsenthttp.ClientConfig{
			Timeout: timeout,
		}),
		url: u,
	}, nil
}

// Trace fetches the trace endpoint and parses its line-oriented key=value
// output.
func (t *Tracer) Trace(ctx context.Context) (r *TraceResult, err error) {
	resp, err := t.http.Get(ctx, t.url)
	if err != nil {
		return nil, fmt.Errorf("fetching trace: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	err = vsenthttp.CheckStatus(resp, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	s := bufio.NewScanner(resp.Body)
	for s.Scan() {
		sb.WriteString(s.Text())
		sb.WriteByte('\n')
	}

	err = s.Err()
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return ParseTrace(sb.String()), nil
}

// ParseTrace parses trace output from raw data.  It is used by tests and by
// callers that fetch the endpoint themselves.
func ParseTrace(data string) (r *TraceResult) {
	r = &TraceResult{}
	for line := range strings.Lines(data) {
		key, val, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}

		switch key {
		case "ip":
			r.IP = val
		case "loc":
			r.Loc = strings.ToUpper(val)
		case "colo":
			r.Colo = strings.ToUpper(val)
		}
	}

	return r
}
