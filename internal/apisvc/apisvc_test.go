package apisvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/apisvc"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/ratelimit"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenttest"
	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test configuration constants.
const (
	testAPIPath = "/api/v1"
	testAPIKey  = "secret-key"
)

// testServerIP is the server's own public IP in tests.
const testServerIP = "203.0.113.5"

// svcConfig is the knobs of [newTestService] that differ between tests.
type svcConfig struct {
	limiter   ratelimit.Interface
	allowlist netutil.SubnetSet
	apiKey    string
}

// newTestService returns the handler of a test API service.
func newTestService(t *testing.T, c *svcConfig) (h http.Handler) {
	t.Helper()

	clock := vsenttest.NewConstClock(vsenttest.Now)

	reg := registry.New(&registry.Config{
		Logger:           slogutil.NewDiscardLogger(),
		Clock:            clock,
		ServerIP:         func() (ip string) { return testServerIP },
		OfflineThreshold: 10 * time.Minute,
	})

	sv := selfview.New(&selfview.Config{
		Logger: slogutil.NewDiscardLogger(),
		Lookup: &vsenttest.GeoLookup{
			OnLookup: func(ctx context.Context) (r *geolookup.Result, err error) {
				return &geolookup.Result{
					PublicIP: testServerIP,
					Country:  "NL",
					City:     "Amsterdam",
				}, nil
			},
		},
		Clock: clock,
	})

	limiter := c.limiter
	if limiter == nil {
		limiter = &vsenttest.RateLimiter{
			OnAllow: func(ip netip.Addr, now time.Time) (ok bool, retryAfter time.Duration) {
				return true, 0
			},
		}
	}

	svc := apisvc.New(&apisvc.Config{
		Logger:      slogutil.NewDiscardLogger(),
		Registry:    reg,
		SelfView:    sv,
		RateLimiter: limiter,
		Clock:       clock,
		Allowlist:   c.allowlist,
		Addr:        "127.0.0.1:0",
		APIPath:     testAPIPath,
		APIKey:      c.apiKey,
		MaxBodySize: 64 * datasize.KB,
		Timeout:     vsenttest.Timeout,
	})

	return svc.Handler()
}

// newKeepaliveBody returns the JSON body of a valid keepalive request.
func newKeepaliveBody(t *testing.T) (body []byte) {
	t.Helper()

	k := &vsent.Keepalive{
		Timestamp: vsenttest.Now,
		ClientID:  "laptop-01",
		PublicIP:  "198.51.100.7",
		Status:    vsent.StatusAlive,
		Location:  vsent.Location{Country: "RO"},
		DNSTest:   vsent.DNSTest{Location: "RO", Colo: "OTP"},
	}

	body, err := json.Marshal(k)
	require.NoError(t, err)

	return body
}

// doRequest performs req against h and returns the recorded response.
func doRequest(h http.Handler, req *http.Request) (rw *httptest.ResponseRecorder) {
	rw = httptest.NewRecorder()
	req.RemoteAddr = "198.51.100.7:54321"
	h.ServeHTTP(rw, req)

	return rw
}

func TestService_keepalive(t *testing.T) {
	h := newTestService(t, &svcConfig{})

	req := httptest.NewRequest(
		http.MethodPost,
		testAPIPath+"/keepalive",
		bytes.NewReader(newKeepaliveBody(t)),
	)

	rw := doRequest(h, req)
	require.Equal(t, http.StatusOK, rw.Code)

	resp := map[string]string{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))

	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "2025-06-01T12:00:00Z", resp["server_time"])
}

func TestService_keepalive_badJSON(t *testing.T) {
	h := newTestService(t, &svcConfig{})

	req := httptest.NewRequest(
		http.MethodPost,
		testAPIPath+"/keepalive",
		bytes.NewReader([]byte("{not json")),
	)

	rw := doRequest(h, req)
	require.Equal(t, http.StatusBadRequest, rw.Code)

	resp := &vsenthttp.ErrorResp{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), resp))
	assert.Equal(t, "invalid_json", resp.Error)
}

func TestService_keepalive_invalid(t *testing.T) {
	h := newTestService(t, &svcConfig{})

	k := &vsent.Keepalive{
		Timestamp: vsenttest.Now,
		ClientID:  "bad_id!",
		Status:    vsent.StatusAlive,
	}
	body, err := json.Marshal(k)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, testAPIPath+"/keepalive", bytes.NewReader(body))

	rw := doRequest(h, req)
	require.Equal(t, http.StatusBadRequest, rw.Code)

	resp := &vsenthttp.ErrorResp{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), resp))
	assert.Equal(t, "invalid_keepalive", resp.Error)
}

func TestService_auth(t *testing.T) {
	h := newTestService(t, &svcConfig{apiKey: testAPIKey})

	t.Run("missing_key", func(t *testing.T) {
		req := httptest.NewRequest(
			http.MethodPost,
			testAPIPath+"/keepalive",
			bytes.NewReader(newKeepaliveBody(t)),
		)

		rw := doRequest(h, req)
		assert.Equal(t, http.StatusUnauthorized, rw.Code)
	})

	t.Run("wrong_key", func(t *testing.T) {
		req := httptest.NewRequest(
			http.MethodPost,
			testAPIPath+"/keepalive",
			bytes.NewReader(newKeepaliveBody(t)),
		)
		req.Header.Set(vsenthttp.HdrAPIKey, "wrong")

		rw := doRequest(h, req)
		assert.Equal(t, http.StatusUnauthorized, rw.Code)
	})

	t.Run("good_key", func(t *testing.T) {
		req := httptest.NewRequest(
			http.MethodPost,
			testAPIPath+"/keepalive",
			bytes.NewReader(newKeepaliveBody(t)),
		)
		req.Header.Set(vsenthttp.HdrAPIKey, testAPIKey)

		rw := doRequest(h, req)
		assert.Equal(t, http.StatusOK, rw.Code)
	})
}

func TestService_ratelimit(t *testing.T) {
	h := newTestService(t, &svcConfig{
		limiter: ratelimit.New(&ratelimit.Config{
			Clock: vsenttest.NewConstClock(vsenttest.Now),
			Limit: 30,
		}),
	})

	for range 30 {
		req := httptest.NewRequest(
			http.MethodPost,
			testAPIPath+"/keepalive",
			bytes.NewReader(newKeepaliveBody(t)),
		)

		rw := doRequest(h, req)
		require.Equal(t, http.StatusOK, rw.Code)
	}

	// The 31st request within the window is rejected.
	req := httptest.NewRequest(
		http.MethodPost,
		testAPIPath+"/keepalive",
		bytes.NewReader(newKeepaliveBody(t)),
	)

	rw := doRequest(h, req)
	require.Equal(t, http.StatusTooManyRequests, rw.Code)

	assert.NotEmpty(t, rw.Header().Get(vsenthttp.HdrRetryAfter))

	resp := map[string]any{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limited", resp["error"])
	assert.Contains(t, resp, "retry_after")
}

func TestService_allowlist(t *testing.T) {
	h := newTestService(t, &svcConfig{
		allowlist: netutil.SliceSubnetSet{netip.MustParsePrefix("10.0.0.0/8")},
	})

	req := httptest.NewRequest(
		http.MethodPost,
		testAPIPath+"/keepalive",
		bytes.NewReader(newKeepaliveBody(t)),
	)

	// The default test source 198.51.100.7 is outside the allowlist.
	rw := doRequest(h, req)
	assert.Equal(t, http.StatusForbidden, rw.Code)
}

func TestService_status(t *testing.T) {
	h := newTestService(t, &svcConfig{})

	req := httptest.NewRequest(
		http.MethodPost,
		testAPIPath+"/keepalive",
		bytes.NewReader(newKeepaliveBody(t)),
	)
	rw := doRequest(h, req)
	require.Equal(t, http.StatusOK, rw.Code)

	req = httptest.NewRequest(http.MethodGet, testAPIPath+"/status", nil)
	rw = doRequest(h, req)
	require.Equal(t, http.StatusOK, rw.Code)

	resp := struct {
		Server struct {
			IP string `json:"ip"`
		} `json:"server"`
		Clients []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"clients"`
	}{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))

	assert.Equal(t, testServerIP, resp.Server.IP)
	require.Len(t, resp.Clients, 1)
	assert.Equal(t, "laptop-01", resp.Clients[0].ID)
	assert.Equal(t, string(vsent.StateOnlineSecure), resp.Clients[0].State)
}

func TestService_methodNotAllowed(t *testing.T) {
	h := newTestService(t, &svcConfig{})

	req := httptest.NewRequest(http.MethodGet, testAPIPath+"/keepalive", nil)
	rw := doRequest(h, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}
