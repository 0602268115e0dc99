// Package notifier translates client transitions into user-visible messages
// on a chat transport and serves the inbound command bot.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/errcoll"
	"github.com/agigante80/VPNSentinel-sub000/internal/metrics"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"golang.org/x/time/rate"
)

// Mode is the tri-state enable setting of the notifier.
type Mode string

// Mode values.  [ModeAuto] enables the notifier iff both transport
// credentials are present; [ModeOn] requires them.
const (
	ModeAuto Mode = ""
	ModeOn   Mode = "true"
	ModeOff  Mode = "false"
)

// NewMode converts the raw environment value into a Mode.
func NewMode(s string) (m Mode, err error) {
	switch m = Mode(s); m {
	case ModeAuto, ModeOn, ModeOff:
		return m, nil
	default:
		return ModeAuto, fmt.Errorf("notifier mode: %w: %q", errors.ErrBadEnumValue, s)
	}
}

// queueSize is the size of the outbound message queue.  The notifier never
// buffers more than this; excess messages are dropped and logged.
const queueSize = 64

// sendRate is the paced outbound send rate.  The transport allows up to 30
// messages a second; we stay well below it.
const sendRate = rate.Limit(5)

// Notifier renders and sends outbound notifications.  A nil *Notifier
// discards every message, which is how a disabled notifier is represented.
type Notifier struct {
	logger    *slog.Logger
	errColl   errcoll.Interface
	transport Transport
	limiter   *rate.Limiter
	clock     timeutil.Clock
	serverIP  registry.ServerIPFunc

	queue chan *Message
	done  chan struct{}

	// retry holds the single message kept for an at-most-once resend after a
	// transport failure.  It is only touched by the sender goroutine.
	retry *Message
}

// Config is the notifier configuration structure.
type Config struct {
	// Logger is used for logging sends.  It must not be nil.
	Logger *slog.Logger

	// ErrColl collects transport errors.  It must not be nil.
	ErrColl errcoll.Interface

	// Transport is the outbound chat transport.  It must not be nil.
	Transport Transport

	// Clock stamps outbound messages.  It must not be nil.
	Clock timeutil.Clock

	// ServerIP provides the server's own public IP for bypass messages.  It
	// must not be nil.
	ServerIP registry.ServerIPFunc
}

// New returns a new properly initialized *Notifier.  c must not be nil.
func New(c *Config) (n *Notifier) {
	return &Notifier{
		logger:    c.Logger,
		errColl:   c.ErrColl,
		transport: c.Transport,
		limiter:   rate.NewLimiter(sendRate, 1),
		clock:     c.Clock,
		serverIP:  c.ServerIP,
		queue:     make(chan *Message, queueSize),
		done:      make(chan struct{}),
	}
}

// Notify queues msg for sending.  It never blocks: when the queue is full the
// message is dropped with a warning.  n may be nil.
func (n *Notifier) Notify(ctx context.Context, msg *Message) {
	if n == nil {
		return
	}

	select {
	case n.queue <- msg:
		// Queued.
	default:
		metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), "dropped").Inc()
		n.logger.WarnContext(
			ctx,
			"notification queue full, dropping",
			"kind", msg.Kind,
			"client_id", msg.ClientID,
		)
	}
}

// NotifyEvent converts a registry event into a message and queues it.  n may
// be nil.
func (n *Notifier) NotifyEvent(ctx context.Context, ev *registry.Event) {
	if n == nil {
		return
	}

	msg := NewMessage(ev)
	msg.Timestamp = n.clock.Now()
	if msg.Kind == KindBypass {
		msg.ServerIP = n.serverIP()
	}

	n.Notify(ctx, msg)
}

// type check
var _ service.Interface = (*Notifier)(nil)

// Start implements the [service.Interface] interface for *Notifier.  It
// starts the sender goroutine.  n may be nil.
func (n *Notifier) Start(_ context.Context) (err error) {
	if n == nil {
		return nil
	}

	go n.sendInALoop()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Notifier.  n may
// be nil.
func (n *Notifier) Shutdown(_ context.Context) (err error) {
	if n == nil {
		return nil
	}

	close(n.done)

	return nil
}

// sendInALoop drains the queue until Shutdown is called.
func (n *Notifier) sendInALoop() {
	ctx := context.Background()
	defer slogutil.RecoverAndLog(ctx, n.logger)

	for {
		select {
		case <-n.done:
			return
		case msg := <-n.queue:
			n.send(ctx, msg)
		}
	}
}

// send renders and sends one message, pacing sends to the transport budget.
// A failed send is kept for one retry before the next message.
func (n *Notifier) send(ctx context.Context, msg *Message) {
	if prev := n.retry; prev != nil {
		n.retry = nil
		n.sendOnce(ctx, prev, false)
	}

	n.sendOnce(ctx, msg, true)
}

// sendOnce renders and sends one message.  When keepForRetry is true, a
// transport failure stores the message for a single later resend.
func (n *Notifier) sendOnce(ctx context.Context, msg *Message, keepForRetry bool) {
	err := n.limiter.Wait(ctx)
	if err != nil {
		return
	}

	err = n.transport.Send(ctx, Render(msg))
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), "error").Inc()
		errcoll.Collect(ctx, n.errColl, n.logger, "sending notification", err)

		if keepForRetry {
			n.retry = msg
		}

		return
	}

	metrics.NotificationsTotal.WithLabelValues(string(msg.Kind), "ok").Inc()
	n.logger.DebugContext(ctx, "notification sent", "kind", msg.Kind, "client_id", msg.ClientID)
}

// NewMessage converts a registry event into a renderable message.
func NewMessage(ev *registry.Event) (msg *Message) {
	rec := ev.Client
	k := &rec.Keepalive

	msg = &Message{
		Kind:          kindForEvent(ev),
		ClientID:      string(rec.ID),
		ClientVersion: rec.Version,
		PrevIP:        ev.PrevIP,
		PublicIP:      k.PublicIP,
		City:          k.Location.City,
		Region:        k.Location.Region,
		Country:       k.Location.Country,
		Provider:      k.Location.Org,
		DNSLocation:   k.DNSTest.Location,
		DNSColo:       k.DNSTest.Colo,
		State:         rec.State,
		LastSeen:      rec.LastSeen,
	}

	if msg.ClientVersion == "" {
		msg.ClientVersion = vsent.UnknownField
	}

	if ev.PrevIP != "" && msg.Kind != KindIPChanged {
		// A consolidated class and IP change; the renderer prints both.
		msg.IPAlsoChanged = true
	}

	return msg
}

// kindForEvent maps a registry event kind to a notification kind.
func kindForEvent(ev *registry.Event) (kind Kind) {
	switch ev.Kind {
	case registry.EventConnected:
		return KindConnected
	case registry.EventIPChanged:
		return KindIPChanged
	case registry.EventDNSLeak:
		return KindDNSLeak
	case registry.EventDNSUnknown:
		return KindDNSUnknown
	case registry.EventBypass:
		return KindBypass
	default:
		return KindOffline
	}
}

// ServerStartedMessage returns the message announcing a server start.
func ServerStartedMessage(
	version string,
	revision string,
	offlineThreshold time.Duration,
	sweepInterval time.Duration,
) (msg *Message) {
	return &Message{
		Kind:             KindServerStarted,
		ServerVersion:    version,
		ServerRevision:   revision,
		OfflineThreshold: offlineThreshold,
		SweepInterval:    sweepInterval,
	}
}

// NoClientsAliveMessage returns the message announcing that no clients are
// online.
func NoClientsAliveMessage(now time.Time) (msg *Message) {
	return &Message{
		Kind:      KindNoClientsAlive,
		Timestamp: now,
	}
}
