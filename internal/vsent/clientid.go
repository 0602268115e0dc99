package vsent

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/validate"
)

// ClientID is the unique ID of a monitored VPN client.  It is an opaque
// string.
type ClientID string

// The maximum and minimum lengths of a client ID.
const (
	MaxClientIDLen = 64
	MinClientIDLen = 1
)

// NewClientID lowercases s, converts it into a ClientID, and makes sure that
// it's valid.  This should be preferred to a simple type conversion.
func NewClientID(s string) (id ClientID, err error) {
	// Do not use errors.Annotate here, because it allocates even when the
	// error is nil.
	defer func() {
		if err != nil {
			err = fmt.Errorf("bad client id %q: %w", s, err)
		}
	}()

	s = strings.ToLower(strings.TrimSpace(s))

	err = validate.InRange("length", len(s), MinClientIDLen, MaxClientIDLen)
	if err != nil {
		// The error will be wrapped by the deferred helper.
		return "", err
	}

	for i, r := range s {
		if !isClientIDRune(r) {
			return "", fmt.Errorf("bad rune %q at index %d", r, i)
		}
	}

	return ClientID(s), nil
}

// isClientIDRune returns true if r is valid in a client ID.  Valid runes are
// lowercase ASCII letters, digits, and hyphens.
func isClientIDRune(r rune) (ok bool) {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}
