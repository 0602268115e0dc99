package agent_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/agent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestKeepalive returns a valid payload for agent tests.
func newTestKeepalive() (k *vsent.Keepalive) {
	return &vsent.Keepalive{
		Timestamp: vsenttest.Now,
		ClientID:  "laptop-01",
		PublicIP:  "198.51.100.7",
		Status:    vsent.StatusAlive,
		Location:  vsent.Location{Country: "RO"},
		DNSTest:   vsent.DNSTest{Location: "RO", Colo: "OTP"},
	}
}

func TestClient_SendKeepalive(t *testing.T) {
	gotCh := make(chan *vsent.Keepalive, 1)
	var gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/keepalive", r.URL.Path)

		gotKey = r.Header.Get(vsenthttp.HdrAPIKey)

		k := &vsent.Keepalive{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(k))
		testutil.RequireSend(testutil.PanicT{}, gotCh, k, vsenttest.Timeout)

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cli, err := agent.NewClient(&agent.ClientConfig{
		ServerURL: u,
		APIPath:   "/api/v1",
		APIKey:    "secret-key",
		Timeout:   vsenttest.Timeout,
	})
	require.NoError(t, err)

	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)
	require.NoError(t, cli.SendKeepalive(ctx, newTestKeepalive()))

	got, _ := testutil.RequireReceive(t, gotCh, vsenttest.Timeout)

	assert.Equal(t, "laptop-01", got.ClientID)
	assert.Equal(t, "secret-key", gotKey)
}

func TestClient_SendKeepalive_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cli, err := agent.NewClient(&agent.ClientConfig{
		ServerURL: u,
		APIPath:   "/api/v1",
		Timeout:   vsenttest.Timeout,
	})
	require.NoError(t, err)

	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)
	assert.Error(t, cli.SendKeepalive(ctx, newTestKeepalive()))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payloads.jsonl")

	s, err := agent.NewFileSink(path)
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, s.Close)

	ctx := testutil.ContextWithTimeout(t, vsenttest.Timeout)
	require.NoError(t, s.Write(ctx, newTestKeepalive()))
	require.NoError(t, s.Write(ctx, newTestKeepalive()))

	f, err := os.Open(path)
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, f.Close)

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++

		k := &vsent.Keepalive{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), k))
		assert.Equal(t, "laptop-01", k.ClientID)
	}
	require.NoError(t, sc.Err())

	assert.Equal(t, 2, lines)
}
