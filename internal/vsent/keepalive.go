package vsent

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
)

// Location is the geolocation part of a keepalive payload.  Country may be a
// full English name or a two-letter ISO code; consumers must normalize it
// before comparison.
type Location struct {
	Country  string `json:"country"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
}

// sanitize cleans all fields of l in place.
func (l *Location) sanitize() {
	l.Country = SanitizeField(l.Country)
	l.City = SanitizeField(l.City)
	l.Region = SanitizeField(l.Region)
	l.Org = SanitizeField(l.Org)
	l.Timezone = SanitizeField(l.Timezone)
}

// DNSTest is the DNS-resolver probe part of a keepalive payload.  Location is
// a two-letter ISO code from the trace endpoint; Colo is a three-letter
// data-center code.
type DNSTest struct {
	Location string `json:"location"`
	Colo     string `json:"colo"`
}

// sanitize cleans all fields of t in place and uppercases the codes.
func (t *DNSTest) sanitize() {
	t.Location = strings.ToUpper(SanitizeField(t.Location))
	t.Colo = strings.ToUpper(SanitizeField(t.Colo))
}

// Keepalive is a single client-to-server observation message.
type Keepalive struct {
	Timestamp     time.Time `json:"timestamp"`
	ClientID      string    `json:"client_id"`
	PublicIP      string    `json:"public_ip"`
	Status        string    `json:"status"`
	ClientVersion string    `json:"client_version"`
	Location      Location  `json:"location"`
	DNSTest       DNSTest   `json:"dns_test"`
}

// Validate sanitizes and validates k in place.  On success, k.ClientID is
// lowercased, k.PublicIP is either a valid IP literal or [UnknownIP], and all
// free-form fields are sanitized.  Validate implements the
// [validate.Interface] interface for *Keepalive.
func (k *Keepalive) Validate() (err error) {
	if k == nil {
		return errors.ErrNoValue
	}

	var errs []error

	id, err := NewClientID(k.ClientID)
	if err != nil {
		errs = append(errs, err)
	} else {
		k.ClientID = string(id)
	}

	if k.Status != StatusAlive {
		errs = append(errs, fmt.Errorf(
			"status: %w: %q",
			errors.ErrBadEnumValue,
			k.Status,
		))
	}

	if k.Timestamp.IsZero() {
		errs = append(errs, fmt.Errorf("timestamp: %w", errors.ErrEmptyValue))
	}

	err = k.validatePublicIP()
	if err != nil {
		errs = append(errs, err)
	}

	k.ClientVersion = SanitizeField(k.ClientVersion)
	k.Location.sanitize()
	k.DNSTest.sanitize()

	return errors.Join(errs...)
}

// validatePublicIP normalizes and validates the public_ip field.  An empty
// value becomes [UnknownIP]; any other value must be a valid IP literal.
func (k *Keepalive) validatePublicIP() (err error) {
	ip := strings.TrimSpace(k.PublicIP)
	if ip == "" || ip == UnknownIP {
		k.PublicIP = UnknownIP

		return nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("public_ip: %w", err)
	}

	k.PublicIP = addr.String()

	return nil
}

// PublicAddr returns the public IP address of the keepalive, if there is a
// valid one.
func (k *Keepalive) PublicAddr() (addr netip.Addr, ok bool) {
	if k.PublicIP == "" || k.PublicIP == UnknownIP {
		return netip.Addr{}, false
	}

	addr, err := netip.ParseAddr(k.PublicIP)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr, true
}
