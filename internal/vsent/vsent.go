// Package vsent contains common entities and interfaces of VPN Sentinel.
package vsent

import "strings"

// Common Constants, Types, And Utilities

// StatusAlive is the only defined value of the keepalive status field.
const StatusAlive = "alive"

// UnknownIP is the sentinel value clients send when they could not determine
// their public IP address.
const UnknownIP = "unknown"

// UnknownField is the sentinel value for geolocation fields that providers
// could not fill.
const UnknownField = "Unknown"

// MaxFieldLen is the maximum length, in bytes, of a single free-form string
// field of a keepalive payload after sanitization.
const MaxFieldLen = 100

// SanitizeField strips ASCII control characters from s and caps the result at
// [MaxFieldLen] bytes.
func SanitizeField(s string) (clean string) {
	clean = strings.Map(func(r rune) (mapped rune) {
		if r < ' ' || r == 0x7F {
			return -1
		}

		return r
	}, s)

	if len(clean) > MaxFieldLen {
		clean = clean[:MaxFieldLen]
	}

	return clean
}
