package registry

import (
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// EventKind is the kind of a transition event, which maps one-to-one onto a
// notification kind.
type EventKind string

// EventKind values.
const (
	EventConnected  EventKind = "connected"
	EventIPChanged  EventKind = "ip_changed"
	EventDNSLeak    EventKind = "dns_leak"
	EventDNSUnknown EventKind = "dns_unknown"
	EventBypass     EventKind = "bypass"
	EventOffline    EventKind = "offline"
)

// Event is a single emitted transition.  Client is a deep copy of the record
// taken after the observation was applied.
type Event struct {
	Client *ClientRecord

	Kind EventKind

	// PrevState is the state the record was in before the observation.
	PrevState vsent.State

	// PrevIP is the previous public IP when the event involves an IP change,
	// and empty otherwise.
	PrevIP string
}

// kindForClass maps an observation class to the event kind announcing it.
func kindForClass(class vsent.Class) (kind EventKind) {
	switch class {
	case vsent.ClassSecure:
		return EventConnected
	case vsent.ClassDNSLeak:
		return EventDNSLeak
	case vsent.ClassBypass:
		return EventBypass
	default:
		return EventDNSUnknown
	}
}

// transition computes the events emitted by applying an observation of class
// class with payload k to rec.  rec still holds its previous values; the
// caller updates it afterwards and fills in the Client copies.  At most one
// event is returned: a simultaneous class and IP change is consolidated.
func transition(rec *ClientRecord, k *vsent.Keepalive, class vsent.Class) (evs []*Event) {
	prevState := rec.State
	prevIP := rec.Keepalive.PublicIP
	ipChanged := prevIP != "" && prevIP != k.PublicIP

	newState := class.State()

	// A client coming from NEW or OFFLINE announces itself regardless of IP.
	if prevState == vsent.StateNew || prevState == vsent.StateOffline {
		return []*Event{{
			Kind:      kindForClass(class),
			PrevState: prevState,
		}}
	}

	if prevState != newState {
		ev := &Event{
			Kind:      kindForClass(class),
			PrevState: prevState,
		}
		if ipChanged {
			// One consolidated notification carrying both facts.
			ev.PrevIP = prevIP
		}

		return []*Event{ev}
	}

	if ipChanged {
		return []*Event{{
			Kind:      EventIPChanged,
			PrevState: prevState,
			PrevIP:    prevIP,
		}}
	}

	return nil
}
