package vsent

// State is the derived health state of a client record.
type State string

// State values.  The zero value is invalid; new records start in [StateNew].
const (
	StateNew              State = "NEW"
	StateOnlineSecure     State = "ONLINE_SECURE"
	StateOnlineDNSLeak    State = "ONLINE_DNS_LEAK"
	StateOnlineDNSUnknown State = "ONLINE_DNS_UNKNOWN"
	StateOnlineBypass     State = "ONLINE_BYPASS"
	StateOffline          State = "OFFLINE"
)

// IsOnline returns true if s is one of the online states.
func (s State) IsOnline() (ok bool) {
	switch s {
	case StateOnlineSecure, StateOnlineDNSLeak, StateOnlineDNSUnknown, StateOnlineBypass:
		return true
	default:
		return false
	}
}

// Class is the classification of a single accepted keepalive observation.
type Class string

// Class values.
const (
	ClassSecure     Class = "SECURE"
	ClassDNSLeak    Class = "DNS_LEAK"
	ClassDNSUnknown Class = "DNS_UNKNOWN"
	ClassBypass     Class = "BYPASS"
)

// State returns the online state a record enters after an observation of
// class c.
func (c Class) State() (s State) {
	switch c {
	case ClassSecure:
		return StateOnlineSecure
	case ClassDNSLeak:
		return StateOnlineDNSLeak
	case ClassBypass:
		return StateOnlineBypass
	default:
		return StateOnlineDNSUnknown
	}
}
