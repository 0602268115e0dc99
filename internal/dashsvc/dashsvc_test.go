package dashsvc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/dashsvc"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService returns the handler of a dashboard over a registry with the
// given records applied.
func newTestService(t *testing.T, ks []*vsent.Keepalive) (h http.Handler) {
	t.Helper()

	clock := vsenttest.NewConstClock(vsenttest.Now)

	reg := registry.New(&registry.Config{
		Logger:           slogutil.NewDiscardLogger(),
		Clock:            clock,
		ServerIP:         func() (ip string) { return "203.0.113.5" },
		OfflineThreshold: 10 * time.Minute,
	})

	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)
	for _, k := range ks {
		_, err := reg.Apply(ctx, k)
		require.NoError(t, err)
	}

	sv := selfview.New(&selfview.Config{
		Logger: slogutil.NewDiscardLogger(),
		Lookup: &vsenttest.GeoLookup{
			OnLookup: func(ctx context.Context) (r *geolookup.Result, err error) {
				return &geolookup.Result{
					PublicIP: "203.0.113.5",
					Country:  "NL",
					City:     "Amsterdam",
				}, nil
			},
		},
		Clock: clock,
	})

	svc := dashsvc.New(&dashsvc.Config{
		Logger:   slogutil.NewDiscardLogger(),
		Registry: reg,
		SelfView: sv,
		Clock:    clock,
		Addr:     "127.0.0.1:0",
	})

	return svc.Handler()
}

func TestService_dashboard(t *testing.T) {
	h := newTestService(t, []*vsent.Keepalive{{
		Timestamp: vsenttest.Now,
		ClientID:  "laptop-01",
		PublicIP:  "198.51.100.7",
		Status:    vsent.StatusAlive,
		Location: vsent.Location{
			Country: "RO",
			City:    "Bucharest",
			Region:  "Bucharest",
			Org:     "AS9009 M247",
		},
		DNSTest: vsent.DNSTest{Location: "RO", Colo: "OTP"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)

	body := rw.Body.String()
	assert.Contains(t, body, "laptop-01")
	assert.Contains(t, body, "198.51.100.7")
	assert.Contains(t, body, "Bucharest, Bucharest, RO")
	assert.Contains(t, body, "RO (OTP)")
	assert.Contains(t, body, `badge ok`)
	assert.Contains(t, body, "203.0.113.5")
}

func TestService_dashboard_empty(t *testing.T) {
	h := newTestService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), "No clients have reported yet")
}

func TestService_redirect(t *testing.T) {
	h := newTestService(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusMovedPermanently, rw.Code)
	assert.Equal(t, "/dashboard", rw.Header().Get("Location"))
}
