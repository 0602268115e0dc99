package vsent_test

import (
	"strings"
	"testing"

	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientID(t *testing.T) {
	testCases := []struct {
		name       string
		in         string
		want       vsent.ClientID
		wantErrMsg string
	}{{
		name:       "simple",
		in:         "laptop-01",
		want:       "laptop-01",
		wantErrMsg: "",
	}, {
		name:       "uppercased",
		in:         "Laptop-01",
		want:       "laptop-01",
		wantErrMsg: "",
	}, {
		name:       "trimmed",
		in:         "  laptop-01  ",
		want:       "laptop-01",
		wantErrMsg: "",
	}, {
		name:       "max_len",
		in:         strings.Repeat("a", 64),
		want:       vsent.ClientID(strings.Repeat("a", 64)),
		wantErrMsg: "",
	}, {
		name: "too_long",
		in:   strings.Repeat("a", 65),
		want: "",
		wantErrMsg: `bad client id "` + strings.Repeat("a", 65) +
			`": length: out of range: must be no greater than 64, got 65`,
	}, {
		name:       "empty",
		in:         "",
		want:       "",
		wantErrMsg: `bad client id "": length: out of range: must be no less than 1, got 0`,
	}, {
		name:       "bad_rune",
		in:         "laptop_01",
		want:       "",
		wantErrMsg: `bad client id "laptop_01": bad rune '_' at index 6`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := vsent.NewClientID(tc.in)
			if tc.wantErrMsg == "" {
				require.NoError(t, err)

				assert.Equal(t, tc.want, id)
			} else {
				assert.EqualError(t, err, tc.wantErrMsg)
			}
		})
	}
}
