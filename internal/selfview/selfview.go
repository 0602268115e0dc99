// Package selfview maintains the server's cached view of its own public
// network identity.  The view exists solely for VPN-bypass detection: a
// keepalive whose public IP equals the server's means the client's traffic is
// not leaving through its tunnel.
package selfview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// MinTTL is the minimum allowed time-to-live of a cached view.
const MinTTL = 5 * time.Minute

// SelfView is the lazily refreshed view of the server's own public IP and
// geolocation.  Stale values are acceptable; the view is best-effort by
// design.
type SelfView struct {
	logger *slog.Logger
	lookup geolookup.Interface
	tracer *geolookup.Tracer
	clock  timeutil.Clock

	// mu protects cur and fetchedAt.
	mu        *sync.RWMutex
	cur       *View
	fetchedAt time.Time

	ttl time.Duration
}

// View is a point-in-time copy of the server identity.
type View struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	City        string `json:"city"`
	DNSLocation string `json:"dns_location"`
}

// Config is the configuration structure for a *SelfView.
type Config struct {
	// Logger is used for logging refreshes.  It must not be nil.
	Logger *slog.Logger

	// Lookup fetches the server geolocation.  It must not be nil.
	Lookup geolookup.Interface

	// Tracer fetches the DNS trace.  It may be nil, in which case the DNS
	// location of the view stays unknown.
	Tracer *geolookup.Tracer

	// Clock is used to decide staleness.  It must not be nil.
	Clock timeutil.Clock

	// TTL is how long a fetched view stays fresh.  Values below [MinTTL] are
	// raised to it.
	TTL time.Duration
}

// New returns a new *SelfView.  c must not be nil.
func New(c *Config) (v *SelfView) {
	ttl := c.TTL
	if ttl < MinTTL {
		ttl = MinTTL
	}

	return &SelfView{
		logger: c.Logger,
		lookup: c.Lookup,
		tracer: c.Tracer,
		clock:  c.Clock,
		mu:     &sync.RWMutex{},
		cur: &View{
			IP:          vsent.UnknownIP,
			Country:     vsent.UnknownField,
			City:        vsent.UnknownField,
			DNSLocation: vsent.UnknownField,
		},
		ttl: ttl,
	}
}

// Current returns the current view, refreshing it first if it is stale.  A
// failed refresh returns the previous, possibly stale, view.
func (v *SelfView) Current(ctx context.Context) (view *View) {
	v.mu.RLock()
	cur, fetchedAt := v.cur, v.fetchedAt
	v.mu.RUnlock()

	if !fetchedAt.IsZero() && v.clock.Now().Sub(fetchedAt) < v.ttl {
		return cur
	}

	err := v.Refresh(ctx)
	if err != nil {
		v.logger.WarnContext(ctx, "self view refresh failed", slogutil.KeyError, err)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.cur
}

// IP returns the server's current public IP, or [vsent.UnknownIP].  It never
// triggers a refresh.
func (v *SelfView) IP() (ip string) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.cur.IP
}

// type check
var _ service.Refresher = (*SelfView)(nil)

// Refresh implements the [service.Refresher] interface for *SelfView.  It
// fetches the identity unconditionally and replaces the cached view on
// success.
func (v *SelfView) Refresh(ctx context.Context) (err error) {
	r, err := v.lookup.Lookup(ctx)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	view := &View{
		IP:          r.PublicIP,
		Country:     r.Country,
		City:        r.City,
		DNSLocation: vsent.UnknownField,
	}

	if v.tracer != nil {
		tr, traceErr := v.tracer.Trace(ctx)
		if traceErr != nil {
			v.logger.DebugContext(ctx, "self view trace failed", slogutil.KeyError, traceErr)
		} else if tr.Loc != "" {
			view.DNSLocation = tr.Loc
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.cur = view
	v.fetchedAt = v.clock.Now()

	v.logger.InfoContext(ctx, "self view refreshed", "ip", view.IP, "country", view.Country)

	return nil
}
