package geolookup

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// resolverProbeName is the special name that, when resolved as TXT through a
// recursive resolver, returns the egress address of that resolver.
const resolverProbeName = "o-o.myaddr.l.google.com."

// resolvConfPath is the path to the system resolver configuration.
const resolvConfPath = "/etc/resolv.conf"

// ResolverProbe reports the egress IP address of the DNS resolver the host
// actually uses.  It is a diagnostic next to the HTTP trace probe: the trace
// shows where the resolver's queries land, the probe shows what the resolver
// looks like from the outside.
type ResolverProbe struct {
	client *dns.Client
	addr   string
}

// NewResolverProbe returns a probe that queries through the first nameserver
// of the system resolver configuration.
func NewResolverProbe(timeout time.Duration) (p *ResolverProbe, err error) {
	conf, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("reading resolver config: %w", err)
	}

	if len(conf.Servers) == 0 {
		return nil, fmt.Errorf("resolver config %s: no nameservers", resolvConfPath)
	}

	return &ResolverProbe{
		client: &dns.Client{
			Timeout: timeout,
		},
		addr: net.JoinHostPort(conf.Servers[0], conf.Port),
	}, nil
}

// Probe returns the resolver egress address as reported by the probe name.
func (p *ResolverProbe) Probe(ctx context.Context) (egress string, err error) {
	m := &dns.Msg{}
	m.SetQuestion(resolverProbeName, dns.TypeTXT)

	resp, _, err := p.client.ExchangeContext(ctx, m, p.addr)
	if err != nil {
		return "", fmt.Errorf("resolver probe: %w", err)
	}

	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}

		if s := strings.Join(txt.Txt, ""); s != "" {
			return s, nil
		}
	}

	return "", fmt.Errorf("resolver probe: no txt answer from %s", p.addr)
}
