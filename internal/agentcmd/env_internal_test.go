package agentcmd

import (
	"testing"

	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKebabCase(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{{
		name: "simple",
		in:   "Laptop01",
		want: "laptop01",
	}, {
		name: "dots_and_spaces",
		in:   "Alice's MacBook Pro.local",
		want: "alice-s-macbook-pro-local",
	}, {
		name: "run_collapsed",
		in:   "host___name",
		want: "host-name",
	}, {
		name: "trimmed",
		in:   "--host--",
		want: "host",
	}, {
		name: "empty",
		in:   "",
		want: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, kebabCase(tc.in))
		})
	}
}

func TestEnvironment_clientID(t *testing.T) {
	envs := &environment{
		ClientID: "laptop-01",
	}

	id, err := envs.clientID()
	require.NoError(t, err)
	assert.Equal(t, vsent.ClientID("laptop-01"), id)

	// An unset ID is derived from the hostname.
	envs.ClientID = ""

	id, err = envs.clientID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, string(id), "client-")
}

func TestEnvironment_serverURL(t *testing.T) {
	envs := &environment{ServerURL: "https://sentinel.example.org"}

	u, err := envs.serverURL()
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)

	envs.ServerURL = "ftp://sentinel.example.org"
	_, err = envs.serverURL()
	assert.Error(t, err)
}

func TestStrictBool(t *testing.T) {
	var sb strictBool

	require.NoError(t, sb.UnmarshalText([]byte("1")))
	assert.True(t, bool(sb))

	require.NoError(t, sb.UnmarshalText([]byte("0")))
	assert.False(t, bool(sb))

	assert.Error(t, sb.UnmarshalText([]byte("true")))
	assert.Error(t, sb.UnmarshalText([]byte("")))
}
