// Package registry owns the in-memory set of client records and the
// transition engine that classifies keepalive observations.  The registry is
// deliberately ephemeral: a server restart clears it.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/country"
	"github.com/agigante80/VPNSentinel-sub000/internal/geodb"
	"github.com/agigante80/VPNSentinel-sub000/internal/metrics"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// ServerIPFunc returns the server's own public IP, or [vsent.UnknownIP] when
// it is not known.  It must be safe for concurrent use.
type ServerIPFunc func() (ip string)

// ClientRecord is the registry's record of a single client.  All fields are
// owned by the registry; callers only ever see deep copies.
type ClientRecord struct {
	LastSeen time.Time

	ID      vsent.ClientID
	Version string

	// Keepalive is the normalized last accepted payload.
	Keepalive vsent.Keepalive

	// Country is the normalized country code actually used for the last
	// classification, after the optional geoip fallback.
	Country country.Code

	State  vsent.State
	PrevIP string

	EverSeenOnline  bool
	OfflineNotified bool
}

// clone returns a deep copy of r.
func (r *ClientRecord) clone() (c *ClientRecord) {
	c = &ClientRecord{}
	*c = *r

	return c
}

// Config is the registry configuration structure.
type Config struct {
	// Logger is used for logging record transitions.  It must not be nil.
	Logger *slog.Logger

	// Clock provides the server-local time used for last-seen tracking.  It
	// must not be nil.
	Clock timeutil.Clock

	// ServerIP provides the server's own public IP for bypass detection.  It
	// must not be nil.
	ServerIP ServerIPFunc

	// GeoDB is the optional country fallback for clients whose payloads carry
	// no usable country.
	GeoDB geodb.Interface

	// OfflineThreshold is how long a client may stay silent before the sweep
	// marks it offline.  It must be positive.
	OfflineThreshold time.Duration
}

// Registry is the in-memory client registry.  It is safe for concurrent use.
type Registry struct {
	logger   *slog.Logger
	clock    timeutil.Clock
	serverIP ServerIPFunc
	geoDB    geodb.Interface

	// mu guards clients and every record behind it.  It is held only around
	// structural mutations and snapshot copies.
	mu      *sync.Mutex
	clients map[vsent.ClientID]*ClientRecord

	offlineThreshold time.Duration
}

// New returns a new properly initialized *Registry.  c must not be nil.
func New(c *Config) (r *Registry) {
	return &Registry{
		logger:           c.Logger,
		clock:            c.Clock,
		serverIP:         c.ServerIP,
		geoDB:            c.GeoDB,
		mu:               &sync.Mutex{},
		clients:          map[vsent.ClientID]*ClientRecord{},
		offlineThreshold: c.OfflineThreshold,
	}
}

// Apply validates and normalizes k, applies it to the record of its client,
// and returns the emitted transitions.  Observations for the same client are
// serialized by the registry lock; distinct clients do not contend beyond the
// short structural section.
func (r *Registry) Apply(ctx context.Context, k *vsent.Keepalive) (evs []*Event, err error) {
	err = k.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating keepalive: %w", err)
	}

	id := vsent.ClientID(k.ClientID)
	now := r.clock.Now()
	class, ctry := r.classify(ctx, k)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.clients[id]
	if !ok {
		rec = &ClientRecord{
			ID:    id,
			State: vsent.StateNew,
		}
		r.clients[id] = rec
	}

	evs = transition(rec, k, class)

	prevIP := rec.Keepalive.PublicIP
	if prevIP != "" && prevIP != k.PublicIP {
		rec.PrevIP = prevIP
	}

	rec.Keepalive = *k
	rec.Version = k.ClientVersion
	rec.LastSeen = now
	rec.Country = ctry
	rec.State = class.State()
	rec.EverSeenOnline = true
	rec.OfflineNotified = false

	r.updateGauges()

	for _, ev := range evs {
		ev.Client = rec.clone()
		metrics.TransitionsTotal.WithLabelValues(string(ev.Kind)).Inc()

		r.logger.InfoContext(
			ctx,
			"transition",
			"client_id", id,
			"kind", ev.Kind,
			"state", rec.State,
		)
	}

	return evs, nil
}

// classify applies the classification rules to a validated keepalive.  The
// returned code is the country actually used for the leak comparison.
func (r *Registry) classify(
	ctx context.Context,
	k *vsent.Keepalive,
) (class vsent.Class, ctry country.Code) {
	ctry = country.Normalize(k.Location.Country)

	serverIP := r.serverIP()
	if k.PublicIP != vsent.UnknownIP && serverIP != "" && serverIP != vsent.UnknownIP &&
		k.PublicIP == serverIP {
		return vsent.ClassBypass, ctry
	}

	dnsLoc := country.Normalize(k.DNSTest.Location)
	if dnsLoc == country.Unknown {
		return vsent.ClassDNSUnknown, ctry
	}

	if ctry == country.Unknown {
		ctry = r.fallbackCountry(ctx, k)
	}

	if ctry == country.Unknown {
		return vsent.ClassDNSUnknown, ctry
	}

	if dnsLoc == ctry {
		return vsent.ClassSecure, ctry
	}

	return vsent.ClassDNSLeak, ctry
}

// fallbackCountry resolves the client country from the optional geoip
// database.  Failures only mean the country stays unknown.
func (r *Registry) fallbackCountry(ctx context.Context, k *vsent.Keepalive) (ctry country.Code) {
	if r.geoDB == nil {
		return country.Unknown
	}

	addr, ok := k.PublicAddr()
	if !ok {
		return country.Unknown
	}

	code, err := r.geoDB.Country(addr)
	if err != nil {
		r.logger.DebugContext(ctx, "geoip fallback failed", slogutil.KeyError, err)

		return country.Unknown
	}

	return country.Normalize(code)
}

// Snapshot returns a consistent point-in-time deep copy of all records,
// sorted by client ID.
func (r *Registry) Snapshot() (recs []*ClientRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs = make([]*ClientRecord, 0, len(r.clients))
	for _, rec := range r.clients {
		recs = append(recs, rec.clone())
	}

	slices.SortFunc(recs, func(a, b *ClientRecord) (res int) {
		return strings.Compare(string(a.ID), string(b.ID))
	})

	return recs
}

// Sweep marks clients that have been silent for longer than the offline
// threshold as offline and returns the emitted transitions.  The offline
// notification for a client is emitted at most once per offline period.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (evs []*Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.offlineThreshold)
	for _, rec := range r.clients {
		if rec.State == vsent.StateOffline || !rec.LastSeen.Before(cutoff) {
			continue
		}

		prev := rec.State
		rec.State = vsent.StateOffline
		rec.OfflineNotified = true

		ev := &Event{
			Kind:      EventOffline,
			Client:    rec.clone(),
			PrevState: prev,
		}
		evs = append(evs, ev)

		metrics.TransitionsTotal.WithLabelValues(string(EventOffline)).Inc()

		r.logger.InfoContext(
			ctx,
			"client offline",
			"client_id", rec.ID,
			"last_seen", rec.LastSeen,
		)
	}

	r.updateGauges()

	return evs
}

// OnlineCount returns the number of known clients and how many of them are in
// an online state.
func (r *Registry) OnlineCount() (total, online int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countLocked()
}

// countLocked counts records.  r.mu must be held.
func (r *Registry) countLocked() (total, online int) {
	total = len(r.clients)
	for _, rec := range r.clients {
		if rec.State.IsOnline() {
			online++
		}
	}

	return total, online
}

// updateGauges refreshes the registry prometheus gauges.  r.mu must be held.
func (r *Registry) updateGauges() {
	total, online := r.countLocked()
	metrics.ClientsCountGauge.Set(float64(total))
	metrics.ClientsOnlineGauge.Set(float64(online))
}
