package vsenttest

import (
	"context"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/errcoll"
	"github.com/agigante80/VPNSentinel-sub000/internal/geodb"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/agigante80/VPNSentinel-sub000/internal/ratelimit"
)

// Interface Mocks
//
// Keep entities within a module/package in alphabetic order.

// type check
var _ timeutil.Clock = (*Clock)(nil)

// Clock is a [timeutil.Clock] for tests.
type Clock struct {
	OnNow func() (now time.Time)
}

// Now implements the [timeutil.Clock] interface for *Clock.
func (c *Clock) Now() (now time.Time) {
	return c.OnNow()
}

// NewConstClock returns a clock that always reports now.
func NewConstClock(now time.Time) (c *Clock) {
	return &Clock{
		OnNow: func() (t time.Time) { return now },
	}
}

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// type check
var _ geodb.Interface = (*GeoDB)(nil)

// GeoDB is a [geodb.Interface] for tests.
type GeoDB struct {
	OnCountry func(addr netip.Addr) (code string, err error)
}

// Country implements the [geodb.Interface] interface for *GeoDB.
func (g *GeoDB) Country(addr netip.Addr) (code string, err error) {
	return g.OnCountry(addr)
}

// type check
var _ geolookup.Interface = (*GeoLookup)(nil)

// GeoLookup is a [geolookup.Interface] for tests.
type GeoLookup struct {
	OnLookup func(ctx context.Context) (r *geolookup.Result, err error)
}

// Lookup implements the [geolookup.Interface] interface for *GeoLookup.
func (g *GeoLookup) Lookup(ctx context.Context) (r *geolookup.Result, err error) {
	return g.OnLookup(ctx)
}

// type check
var _ ratelimit.Interface = (*RateLimiter)(nil)

// RateLimiter is a [ratelimit.Interface] for tests.
type RateLimiter struct {
	OnAllow func(ip netip.Addr, now time.Time) (ok bool, retryAfter time.Duration)
}

// Allow implements the [ratelimit.Interface] interface for *RateLimiter.
func (l *RateLimiter) Allow(ip netip.Addr, now time.Time) (ok bool, retryAfter time.Duration) {
	return l.OnAllow(ip, now)
}

// type check
var _ notifier.Transport = (*Transport)(nil)

// Transport is a [notifier.Transport] for tests.
type Transport struct {
	OnSend    func(ctx context.Context, text string) (err error)
	OnReceive func(ctx context.Context, offset int64) (ups []*notifier.Update, err error)
}

// Send implements the [notifier.Transport] interface for *Transport.
func (t *Transport) Send(ctx context.Context, text string) (err error) {
	return t.OnSend(ctx, text)
}

// Receive implements the [notifier.Transport] interface for *Transport.
func (t *Transport) Receive(
	ctx context.Context,
	offset int64,
) (ups []*notifier.Update, err error) {
	return t.OnReceive(ctx, offset)
}
