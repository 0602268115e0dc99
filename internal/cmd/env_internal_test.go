package cmd

import (
	"net/netip"
	"testing"

	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_allowlist(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		wantNilSet bool
		wantErr    bool
	}{{
		name:       "empty",
		raw:        "",
		wantNilSet: true,
	}, {
		name:       "single",
		raw:        "10.0.0.0/8",
		wantNilSet: false,
	}, {
		name:       "several_with_spaces",
		raw:        "10.0.0.0/8, 192.0.2.0/24",
		wantNilSet: false,
	}, {
		name:       "any_disables",
		raw:        "0.0.0.0/0",
		wantNilSet: true,
	}, {
		name:    "bad_cidr",
		raw:     "10.0.0.0/33",
		wantErr: true,
	}, {
		name:    "not_a_cidr",
		raw:     "10.0.0.1",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			envs := &environment{IPAllowlist: tc.raw}

			set, err := envs.allowlist()
			if tc.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			if tc.wantNilSet {
				assert.Nil(t, set)
			} else {
				assert.NotNil(t, set)
			}
		})
	}

	t.Run("contains", func(t *testing.T) {
		envs := &environment{IPAllowlist: "10.0.0.0/8,192.0.2.0/24"}

		set, err := envs.allowlist()
		require.NoError(t, err)

		assert.True(t, set.Contains(netip.MustParseAddr("10.1.2.3")))
		assert.True(t, set.Contains(netip.MustParseAddr("192.0.2.200")))
		assert.False(t, set.Contains(netip.MustParseAddr("198.51.100.7")))
	})
}

func TestEnvironment_validateNotifierCreds(t *testing.T) {
	envs := &environment{
		NotifierEnabled: string(notifier.ModeOn),
	}

	errs := envs.validateNotifierCreds(nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "TELEGRAM_TOKEN")

	envs.TelegramToken = "123:abc"
	envs.TelegramChatID = 42
	assert.Empty(t, envs.validateNotifierCreds(nil))

	// Auto mode never requires credentials.
	envs = &environment{}
	assert.Empty(t, envs.validateNotifierCreds(nil))
}

func TestConfiguration_apply(t *testing.T) {
	envs := &environment{
		OfflineThresholdSecs: 600,
		SweepIntervalSecs:    60,
		RateLimit:            30,
	}

	c := &configuration{
		OfflineThresholdSecs: 900,
		RateLimit:            10,
	}
	require.NoError(t, c.Validate())

	c.apply(envs)

	assert.Equal(t, uint(900), envs.OfflineThresholdSecs)
	assert.Equal(t, uint(10), envs.RateLimit)

	// Unset values keep the environment defaults.
	assert.Equal(t, uint(60), envs.SweepIntervalSecs)
}

func TestConfiguration_Validate(t *testing.T) {
	c := &configuration{
		Countries: map[string]string{"Wakanda": "WK"},
	}
	assert.NoError(t, c.Validate())

	c = &configuration{
		Countries: map[string]string{"Nowhere": "XYZ"},
	}
	assert.Error(t, c.Validate())
}
