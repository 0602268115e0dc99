// Package agent contains the client-side sampling loop of VPN Sentinel: it
// observes the host's public network identity and reports it to the server as
// keepalive messages.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// Sampler performs one observation per refresh: geolocation lookup, DNS
// trace, payload assembly, and the keepalive POST.
type Sampler struct {
	logger   *slog.Logger
	lookup   geolookup.Interface
	tracer   *geolookup.Tracer
	resolver *geolookup.ResolverProbe
	client   *Client
	sink     Sink
	clock    timeutil.Clock

	clientID vsent.ClientID
}

// SamplerConfig is the sampler configuration structure.
type SamplerConfig struct {
	// Logger is used for logging samples.  It must not be nil.
	Logger *slog.Logger

	// Lookup fetches the public identity.  It must not be nil.
	Lookup geolookup.Interface

	// Tracer fetches the DNS exit location.  It may be nil, in which case the
	// dns_test part of the payload stays empty.
	Tracer *geolookup.Tracer

	// Resolver is the optional resolver egress probe, used for diagnostics
	// only.
	Resolver *geolookup.ResolverProbe

	// Client posts the keepalives.  It must not be nil.
	Client *Client

	// Sink receives a copy of every assembled payload.  It may be nil.
	Sink Sink

	// Clock must not be nil.
	Clock timeutil.Clock

	// ClientID identifies this host to the server.  It must be valid.
	ClientID vsent.ClientID
}

// NewSampler returns a new properly initialized *Sampler.  c must not be nil.
func NewSampler(c *SamplerConfig) (s *Sampler) {
	return &Sampler{
		logger:   c.Logger,
		lookup:   c.Lookup,
		tracer:   c.Tracer,
		resolver: c.Resolver,
		client:   c.Client,
		sink:     c.Sink,
		clock:    c.Clock,
		clientID: c.ClientID,
	}
}

// type check
var _ service.Refresher = (*Sampler)(nil)

// Refresh implements the [service.Refresher] interface for *Sampler.  It
// performs one full sample.  Failures are logged and reported as the refresh
// error; the next scheduled sample proceeds regardless.
func (s *Sampler) Refresh(ctx context.Context) (err error) {
	k := s.sample(ctx)

	if s.sink != nil {
		sinkErr := s.sink.Write(ctx, k)
		if sinkErr != nil {
			s.logger.WarnContext(ctx, "writing payload sink", slogutil.KeyError, sinkErr)
		}
	}

	err = s.client.SendKeepalive(ctx, k)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	s.logger.InfoContext(
		ctx,
		"keepalive sent",
		"public_ip", k.PublicIP,
		"country", k.Location.Country,
		"dns_location", k.DNSTest.Location,
	)

	return nil
}

// sample assembles one keepalive payload.  Lookup failures leave the
// corresponding fields at their unknown sentinels; the payload is sent in any
// case so the server tracks liveness even when geolocation is down.
func (s *Sampler) sample(ctx context.Context) (k *vsent.Keepalive) {
	k = &vsent.Keepalive{
		Timestamp:     s.clock.Now().UTC(),
		ClientID:      string(s.clientID),
		PublicIP:      vsent.UnknownIP,
		Status:        vsent.StatusAlive,
		ClientVersion: version.Version(),
	}

	r, err := s.lookup.Lookup(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "geolocation lookup failed", slogutil.KeyError, err)
	} else {
		k.PublicIP = r.PublicIP
		k.Location = vsent.Location{
			Country:  r.Country,
			City:     r.City,
			Region:   r.Region,
			Org:      r.Org,
			Timezone: r.Timezone,
		}
	}

	if s.tracer != nil {
		tr, traceErr := s.tracer.Trace(ctx)
		if traceErr != nil {
			s.logger.WarnContext(ctx, "dns trace failed", slogutil.KeyError, traceErr)
		} else {
			k.DNSTest = vsent.DNSTest{
				Location: tr.Loc,
				Colo:     tr.Colo,
			}
		}
	}

	s.probeResolver(ctx)

	return k
}

// resolverProbeTimeout bounds the diagnostic resolver probe so that it never
// eats into the sample budget.
const resolverProbeTimeout = 5 * time.Second

// probeResolver logs which network the system resolver egresses from.  The
// result is diagnostic only and never part of the payload.
func (s *Sampler) probeResolver(ctx context.Context) {
	if s.resolver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, resolverProbeTimeout)
	defer cancel()

	egress, err := s.resolver.Probe(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "resolver probe failed", slogutil.KeyError, err)

		return
	}

	s.logger.DebugContext(ctx, "resolver egress", "addr", egress)
}
