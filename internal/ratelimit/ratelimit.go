// Package ratelimit implements the per-IP sliding-window rate limiter used by
// the API listener.
package ratelimit

import (
	"net/netip"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	cache "github.com/patrickmn/go-cache"
)

// Interface is the rate limiter interface.
type Interface interface {
	// Allow reports whether a request from ip at now is within the limit.
	// When it is not, retryAfter is how long the client should wait before
	// retrying.
	Allow(ip netip.Addr, now time.Time) (ok bool, retryAfter time.Duration)
}

// Window is the fixed sliding-window length.
const Window = 1 * time.Minute

// SlidingWindow is an [Interface] implementation that keeps a bounded ordered
// sequence of request timestamps per source IP.  Entries older than the
// window are pruned on access; idle entries are evicted by TTL.
type SlidingWindow struct {
	clock timeutil.Clock

	// entries maps a source IP string to its *ipEntry.  The cache TTL keeps
	// memory bounded without a dedicated cleanup pass of our own.
	entries *cache.Cache

	limit int
}

// Config is the rate limiter configuration structure.
type Config struct {
	// Clock must not be nil.
	Clock timeutil.Clock

	// Limit is the number of requests allowed per IP per [Window].  It must
	// be positive.
	Limit int
}

// ipEntry is the per-IP window state.  Each entry has its own lock so that
// requests from distinct IPs do not contend.
type ipEntry struct {
	mu    sync.Mutex
	times []time.Time
}

// New returns a new properly initialized *SlidingWindow.  c must not be nil.
func New(c *Config) (l *SlidingWindow) {
	return &SlidingWindow{
		clock:   c.Clock,
		entries: cache.New(2*Window, 2*Window),
		limit:   c.Limit,
	}
}

// type check
var _ Interface = (*SlidingWindow)(nil)

// Allow implements the [Interface] interface for *SlidingWindow.
func (l *SlidingWindow) Allow(ip netip.Addr, now time.Time) (ok bool, retryAfter time.Duration) {
	key := ip.String()

	e, found := l.entries.Get(key)
	if !found {
		fresh := &ipEntry{}
		err := l.entries.Add(key, fresh, cache.DefaultExpiration)
		if err != nil {
			// Lost the race to another request from the same IP.
			e, _ = l.entries.Get(key)
			if e == nil {
				e = fresh
			}
		} else {
			e = fresh
		}
	}

	ent := e.(*ipEntry)

	ent.mu.Lock()
	defer ent.mu.Unlock()

	cutoff := now.Add(-Window)
	i := 0
	for ; i < len(ent.times) && !ent.times[i].After(cutoff); i++ {
		// Find the first timestamp still inside the window.
	}

	ent.times = append(ent.times[:0], ent.times[i:]...)

	if len(ent.times) >= l.limit {
		retryAfter = ent.times[0].Add(Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}

		return false, retryAfter
	}

	ent.times = append(ent.times, now)

	// Reset the TTL so that active entries are not evicted mid-window.
	l.entries.Set(key, ent, cache.DefaultExpiration)

	return true, 0
}
