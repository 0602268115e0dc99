// Package country normalizes country identifiers to canonical two-letter
// ISO 3166-1 alpha-2 codes.
//
// Geolocation providers disagree about encodings: some return full English
// names, some return codes, and the DNS trace endpoint always returns a code.
// Comparing raw strings would produce false DNS-leak alarms, so all
// comparisons go through [Normalize].
package country

import "strings"

// Code is a canonical two-letter uppercase ISO 3166-1 alpha-2 country code or
// the [Unknown] sentinel.
type Code string

// Unknown is the sentinel code for empty, unmatched, or otherwise unusable
// inputs.
const Unknown Code = "UNKNOWN"

// Normalize converts s, which may be a full English country name or a
// two-letter code in any case and with surrounding whitespace, into a
// canonical [Code].  Unmatched inputs normalize to [Unknown].
func Normalize(s string) (c Code) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}

	if len(s) == 2 && isAlpha(s[0]) && isAlpha(s[1]) {
		return Code(strings.ToUpper(s))
	}

	if c, ok := nameToCode[strings.ToLower(s)]; ok {
		return c
	}

	return Unknown
}

// Equal returns true if a and b normalize to the same known country.  Two
// [Unknown] values are not equal: an unknown country can never be asserted to
// match anything.
func Equal(a, b string) (ok bool) {
	na, nb := Normalize(a), Normalize(b)
	if na == Unknown || nb == Unknown {
		return false
	}

	return na == nb
}

// Extend adds the given full-name to code mappings to the lookup table.  It
// must only be called during startup, before any concurrent use of
// [Normalize].
func Extend(names map[string]string) {
	for name, code := range names {
		c := Normalize(code)
		if c == Unknown {
			continue
		}

		nameToCode[strings.ToLower(strings.TrimSpace(name))] = c
	}
}

// isAlpha returns true if b is an ASCII letter.
func isAlpha(b byte) (ok bool) {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
