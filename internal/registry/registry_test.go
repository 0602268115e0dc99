package registry_test

import (
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/country"
	"github.com/agigante80/VPNSentinel-sub000/internal/geodb"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenttest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testServerIP is the server's own public IP in tests.
const testServerIP = "203.0.113.5"

// newTestRegistry returns a registry for tests.  clock and gdb may be nil.
func newTestRegistry(tb testing.TB, clock *vsenttest.Clock, gdb geodb.Interface) (r *registry.Registry) {
	tb.Helper()

	if clock == nil {
		clock = vsenttest.NewConstClock(vsenttest.Now)
	}

	return registry.New(&registry.Config{
		Logger:           slogutil.NewDiscardLogger(),
		Clock:            clock,
		ServerIP:         func() (ip string) { return testServerIP },
		GeoDB:            gdb,
		OfflineThreshold: 10 * time.Minute,
	})
}

// newTestKeepalive returns a valid keepalive for tests.
func newTestKeepalive(id string) (k *vsent.Keepalive) {
	return &vsent.Keepalive{
		Timestamp:     vsenttest.Now,
		ClientID:      id,
		PublicIP:      "198.51.100.7",
		Status:        vsent.StatusAlive,
		ClientVersion: "1.2.3",
		Location: vsent.Location{
			Country: "Romania",
			City:    "Bucharest",
			Region:  "Bucharest",
			Org:     "AS9009 M247",
		},
		DNSTest: vsent.DNSTest{
			Location: "RO",
			Colo:     "OTP",
		},
	}
}

func TestRegistry_Apply_classification(t *testing.T) {
	testCases := []struct {
		modify    func(k *vsent.Keepalive)
		name      string
		wantState vsent.State
		wantKind  registry.EventKind
	}{{
		modify:    func(k *vsent.Keepalive) {},
		name:      "secure_name_vs_code",
		wantState: vsent.StateOnlineSecure,
		wantKind:  registry.EventConnected,
	}, {
		modify: func(k *vsent.Keepalive) {
			k.Location.Country = "ES"
			k.DNSTest.Location = "DE"
		},
		name:      "leak",
		wantState: vsent.StateOnlineDNSLeak,
		wantKind:  registry.EventDNSLeak,
	}, {
		modify: func(k *vsent.Keepalive) {
			k.PublicIP = testServerIP
		},
		name:      "bypass",
		wantState: vsent.StateOnlineBypass,
		wantKind:  registry.EventBypass,
	}, {
		modify: func(k *vsent.Keepalive) {
			// Bypass wins even when the DNS location disagrees.
			k.PublicIP = testServerIP
			k.DNSTest.Location = "DE"
		},
		name:      "bypass_beats_leak",
		wantState: vsent.StateOnlineBypass,
		wantKind:  registry.EventBypass,
	}, {
		modify: func(k *vsent.Keepalive) {
			k.DNSTest.Location = ""
		},
		name:      "missing_dns",
		wantState: vsent.StateOnlineDNSUnknown,
		wantKind:  registry.EventDNSUnknown,
	}, {
		modify: func(k *vsent.Keepalive) {
			k.Location.Country = ""
		},
		name:      "missing_country",
		wantState: vsent.StateOnlineDNSUnknown,
		wantKind:  registry.EventDNSUnknown,
	}, {
		modify: func(k *vsent.Keepalive) {
			// An unknown public IP must not be compared against the server IP.
			k.PublicIP = ""
		},
		name:      "unknown_ip_skips_bypass",
		wantState: vsent.StateOnlineSecure,
		wantKind:  registry.EventConnected,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry(t, nil, nil)
			ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

			k := newTestKeepalive("laptop-01")
			tc.modify(k)

			evs, err := r.Apply(ctx, k)
			require.NoError(t, err)
			require.Len(t, evs, 1)

			assert.Equal(t, tc.wantKind, evs[0].Kind)
			assert.Equal(t, tc.wantState, evs[0].Client.State)
			assert.Equal(t, vsent.StateNew, evs[0].PrevState)
		})
	}
}

func TestRegistry_Apply_geoDBFallback(t *testing.T) {
	gdb := &vsenttest.GeoDB{
		OnCountry: func(addr netip.Addr) (code string, err error) {
			return "RO", nil
		},
	}

	r := newTestRegistry(t, nil, gdb)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	k := newTestKeepalive("laptop-01")
	k.Location.Country = ""

	evs, err := r.Apply(ctx, k)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventConnected, evs[0].Kind)
	assert.Equal(t, country.Code("RO"), evs[0].Client.Country)
}

func TestRegistry_Apply_geoDBError(t *testing.T) {
	gdb := &vsenttest.GeoDB{
		OnCountry: func(addr netip.Addr) (code string, err error) {
			return "", fmt.Errorf("db closed")
		},
	}

	r := newTestRegistry(t, nil, gdb)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	k := newTestKeepalive("laptop-01")
	k.Location.Country = ""

	evs, err := r.Apply(ctx, k)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventDNSUnknown, evs[0].Kind)
}

func TestRegistry_Apply_invalid(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	k := newTestKeepalive("laptop-01")
	k.Status = "dead"

	_, err := r.Apply(ctx, k)
	assert.Error(t, err)

	assert.Empty(t, r.Snapshot())
}

func TestRegistry_Apply_idempotent(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	evs, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)
	require.Len(t, evs, 1)

	// The exact same observation again must not produce any events.
	evs, err = r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	assert.Empty(t, evs)
}

func TestRegistry_Apply_ipChange(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	k := newTestKeepalive("laptop-01")
	k.PublicIP = "198.51.100.8"

	evs, err := r.Apply(ctx, k)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventIPChanged, evs[0].Kind)
	assert.Equal(t, "198.51.100.7", evs[0].PrevIP)
	assert.Equal(t, "198.51.100.8", evs[0].Client.Keepalive.PublicIP)
}

func TestRegistry_Apply_consolidated(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	// Class and IP change at once: a single event of the new class carrying
	// the previous IP.
	k := newTestKeepalive("laptop-01")
	k.PublicIP = "198.51.100.8"
	k.DNSTest.Location = "DE"

	evs, err := r.Apply(ctx, k)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventDNSLeak, evs[0].Kind)
	assert.Equal(t, "198.51.100.7", evs[0].PrevIP)
}

func TestRegistry_Apply_lastSeenFromServerClock(t *testing.T) {
	now := vsenttest.Now
	clock := &vsenttest.Clock{
		OnNow: func() (t time.Time) { return now },
	}

	r := newTestRegistry(t, clock, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	// A keepalive with an old client timestamp still gets the server time.
	k := newTestKeepalive("laptop-01")
	k.Timestamp = vsenttest.Now.Add(-24 * time.Hour)

	_, err := r.Apply(ctx, k)
	require.NoError(t, err)

	recs := r.Snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, vsenttest.Now, recs[0].LastSeen)

	// Last seen is monotonic in the server clock.
	now = now.Add(1 * time.Minute)
	_, err = r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	recs = r.Snapshot()
	require.Len(t, recs, 1)
	assert.Equal(t, vsenttest.Now.Add(1*time.Minute), recs[0].LastSeen)
}

func TestRegistry_Sweep(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	// Within the threshold: no events.
	evs := r.Sweep(ctx, vsenttest.Now.Add(5*time.Minute))
	assert.Empty(t, evs)

	// Past the threshold: exactly one offline event.
	evs = r.Sweep(ctx, vsenttest.Now.Add(11*time.Minute))
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventOffline, evs[0].Kind)
	assert.Equal(t, vsent.StateOnlineSecure, evs[0].PrevState)
	assert.Equal(t, vsent.StateOffline, evs[0].Client.State)

	// Sweeping again must not repeat the notification.
	evs = r.Sweep(ctx, vsenttest.Now.Add(12*time.Minute))
	assert.Empty(t, evs)
}

func TestRegistry_Sweep_thenReturn(t *testing.T) {
	now := vsenttest.Now
	clock := &vsenttest.Clock{
		OnNow: func() (t time.Time) { return now },
	}

	r := newTestRegistry(t, clock, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)

	evs := r.Sweep(ctx, now.Add(11*time.Minute))
	require.Len(t, evs, 1)

	// A returning client re-announces itself with its class event.
	now = now.Add(12 * time.Minute)
	evs, err = r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.Equal(t, registry.EventConnected, evs[0].Kind)
	assert.Equal(t, vsent.StateOffline, evs[0].PrevState)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("zebra"))
	require.NoError(t, err)
	_, err = r.Apply(ctx, newTestKeepalive("alpha"))
	require.NoError(t, err)

	recs := r.Snapshot()
	require.Len(t, recs, 2)

	// Sorted by ID.
	assert.Equal(t, vsent.ClientID("alpha"), recs[0].ID)
	assert.Equal(t, vsent.ClientID("zebra"), recs[1].ID)

	// Consecutive snapshots are equal but independent.
	again := r.Snapshot()
	assert.Empty(t, cmp.Diff(recs, again))

	// Deep copies: mutating a snapshot must not leak into the registry.
	recs[0].Keepalive.PublicIP = "10.0.0.1"
	recs = r.Snapshot()
	assert.Equal(t, "198.51.100.7", recs[0].Keepalive.PublicIP)
}

func TestRegistry_OnlineCount(t *testing.T) {
	r := newTestRegistry(t, nil, nil)
	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)

	_, err := r.Apply(ctx, newTestKeepalive("laptop-01"))
	require.NoError(t, err)
	_, err = r.Apply(ctx, newTestKeepalive("laptop-02"))
	require.NoError(t, err)

	total, online := r.OnlineCount()
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, online)

	_ = r.Sweep(ctx, vsenttest.Now.Add(11*time.Minute))

	total, online = r.OnlineCount()
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, online)
}
