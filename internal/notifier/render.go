package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// Kind is the kind of a notification.
type Kind string

// Kind values.
const (
	KindConnected      Kind = "connected"
	KindIPChanged      Kind = "ip_changed"
	KindDNSLeak        Kind = "dns_leak"
	KindDNSUnknown     Kind = "dns_unknown"
	KindBypass         Kind = "bypass"
	KindOffline        Kind = "offline"
	KindNoClientsAlive Kind = "no_clients_alive"
	KindServerStarted  Kind = "server_started"
)

// Message is a single renderable notification.  Fields irrelevant to a kind
// are left zero and not rendered.  Timestamp is the instant the message was
// produced; the renderer humanizes LastSeen relative to it.
type Message struct {
	LastSeen  time.Time
	Timestamp time.Time

	Kind Kind

	ClientID      string
	ClientVersion string

	PublicIP string
	PrevIP   string
	ServerIP string

	City     string
	Region   string
	Country  string
	Provider string

	DNSLocation string
	DNSColo     string

	State vsent.State

	ServerVersion  string
	ServerRevision string

	OfflineThreshold time.Duration
	SweepInterval    time.Duration

	// IPAlsoChanged marks a class-change message that also carries an IP
	// change, so the renderer prints the previous IP line.
	IPAlsoChanged bool
}

// Titles of the rendered messages, keyed by kind.
var titles = map[Kind]string{
	KindConnected:      "🟢 VPN Client Connected",
	KindIPChanged:      "🔄 VPN Client IP Changed",
	KindDNSLeak:        "⚠️ DNS Leak Detected",
	KindDNSUnknown:     "❓ DNS Location Unknown",
	KindBypass:         "🚨 VPN Bypass Detected",
	KindOffline:        "🔴 VPN Client Offline",
	KindNoClientsAlive: "😴 No Clients Alive",
	KindServerStarted:  "🚀 VPN Sentinel Server Started",
}

// Field labels used by both [Render] and [Parse].
const (
	labelClient     = "Client"
	labelVersion    = "Version"
	labelIP         = "IP"
	labelPrevIP     = "Previous IP"
	labelServerIP   = "Server IP"
	labelLocation   = "Location"
	labelProvider   = "Provider"
	labelDNS        = "DNS"
	labelState      = "State"
	labelLastSeen   = "Last seen"
	labelTime       = "Time"
	labelRevision   = "Revision"
	labelOfflineThr = "Offline threshold"
	labelSweepIntvl = "Sweep interval"
)

// renderTimeFormat is the timestamp layout used in rendered messages.
const renderTimeFormat = time.RFC3339

// Render renders msg as the HTML text sent to the chat transport.
func Render(msg *Message) (text string) {
	b := &strings.Builder{}
	_, _ = fmt.Fprintf(b, "<b>%s</b>\n", titles[msg.Kind])

	switch msg.Kind {
	case KindServerStarted:
		renderField(b, labelVersion, msg.ServerVersion)
		renderField(b, labelRevision, msg.ServerRevision)
		renderField(b, labelOfflineThr, msg.OfflineThreshold.String())
		renderField(b, labelSweepIntvl, msg.SweepInterval.String())
	case KindNoClientsAlive:
		renderField(b, labelTime, msg.Timestamp.UTC().Format(renderTimeFormat))
	case KindOffline:
		renderCodeField(b, labelClient, msg.ClientID)
		renderField(
			b,
			labelLastSeen,
			fmt.Sprintf(
				"%s (%s)",
				msg.LastSeen.UTC().Format(renderTimeFormat),
				vsent.HumanizeSince(msg.Timestamp.Sub(msg.LastSeen)),
			),
		)
	case KindBypass:
		renderCodeField(b, labelClient, msg.ClientID)
		renderCodeField(b, labelIP, msg.PublicIP)
		renderCodeField(b, labelServerIP, msg.ServerIP)
		renderField(b, labelLocation, renderLocation(msg))
		_, _ = b.WriteString("Traffic appears to egress from the monitoring server itself.\n")
	default:
		renderCodeField(b, labelClient, msg.ClientID)
		renderField(b, labelVersion, msg.ClientVersion)
		if msg.Kind == KindIPChanged || msg.IPAlsoChanged {
			renderCodeField(b, labelPrevIP, msg.PrevIP)
		}
		renderCodeField(b, labelIP, msg.PublicIP)
		renderField(b, labelLocation, renderLocation(msg))
		renderField(b, labelProvider, msg.Provider)
		renderField(b, labelDNS, renderDNS(msg))
		renderField(b, labelState, string(msg.State))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderField writes a single "Label: value" line, escaping the value.
func renderField(b *strings.Builder, label, value string) {
	_, _ = fmt.Fprintf(b, "%s: %s\n", label, html.EscapeString(value))
}

// renderCodeField writes a single "Label: <code>value</code>" line.
func renderCodeField(b *strings.Builder, label, value string) {
	_, _ = fmt.Fprintf(b, "%s: <code>%s</code>\n", label, html.EscapeString(value))
}

// renderLocation joins the city, region, and country fields.
func renderLocation(msg *Message) (s string) {
	return fmt.Sprintf("%s, %s, %s", msg.City, msg.Region, msg.Country)
}

// renderDNS joins the DNS exit location and colo.
func renderDNS(msg *Message) (s string) {
	return fmt.Sprintf("%s (%s)", msg.DNSLocation, msg.DNSColo)
}

// Parsed is the structured form recovered from a rendered message.
type Parsed struct {
	// Fields maps field labels to their unescaped values.
	Fields map[string]string

	Kind Kind
}

// Parse recovers the kind and the labeled fields from a rendered message.  It
// is the inverse of [Render] for the fields Render writes.
func Parse(text string) (p *Parsed, err error) {
	p = &Parsed{
		Fields: map[string]string{},
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("parsing notification: empty text")
	}

	title := stripTags(lines[0])
	for kind, t := range titles {
		if t == title {
			p.Kind = kind

			break
		}
	}

	if p.Kind == "" {
		return nil, fmt.Errorf("parsing notification: unknown title %q", title)
	}

	for _, line := range lines[1:] {
		label, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}

		p.Fields[label] = html.UnescapeString(stripTags(value))
	}

	return p, nil
}

// stripTags removes the few HTML tags the renderer emits.
func stripTags(s string) (out string) {
	r := strings.NewReplacer("<b>", "", "</b>", "", "<code>", "", "</code>", "")

	return r.Replace(s)
}
