package country_test

import (
	"testing"

	"github.com/agigante80/VPNSentinel-sub000/internal/country"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want country.Code
	}{{
		name: "code_upper",
		in:   "RO",
		want: "RO",
	}, {
		name: "code_lower",
		in:   "ro",
		want: "RO",
	}, {
		name: "code_mixed",
		in:   "Ro",
		want: "RO",
	}, {
		name: "full_name",
		in:   "Romania",
		want: "RO",
	}, {
		name: "full_name_lower",
		in:   "romania",
		want: "RO",
	}, {
		name: "full_name_spaces",
		in:   "  United Kingdom  ",
		want: "GB",
	}, {
		name: "multiword",
		in:   "United States of America",
		want: "US",
	}, {
		name: "empty",
		in:   "",
		want: country.Unknown,
	}, {
		name: "whitespace",
		in:   "   ",
		want: country.Unknown,
	}, {
		name: "unmatched",
		in:   "Atlantis",
		want: country.Unknown,
	}, {
		name: "two_digits",
		in:   "12",
		want: country.Unknown,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, country.Normalize(tc.in))
		})
	}
}

func TestEqual(t *testing.T) {
	testCases := []struct {
		want assert.BoolAssertionFunc
		name string
		a    string
		b    string
	}{{
		want: assert.True,
		name: "name_vs_code",
		a:    "Romania",
		b:    "RO",
	}, {
		want: assert.True,
		name: "case_insensitive",
		a:    "de",
		b:    "DE",
	}, {
		want: assert.False,
		name: "different",
		a:    "ES",
		b:    "DE",
	}, {
		want: assert.False,
		name: "both_unknown",
		a:    "",
		b:    "",
	}, {
		want: assert.False,
		name: "one_unknown",
		a:    "Atlantis",
		b:    "RO",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.want(t, country.Equal(tc.a, tc.b))
		})
	}
}

func TestExtend(t *testing.T) {
	country.Extend(map[string]string{
		"Wakanda":  "WK",
		"nowhere":  "bad-code",
		"Helvetia": "ch",
	})

	assert.Equal(t, country.Code("WK"), country.Normalize("wakanda"))
	assert.Equal(t, country.Code("CH"), country.Normalize("Helvetia"))
	assert.Equal(t, country.Unknown, country.Normalize("nowhere"))
}
