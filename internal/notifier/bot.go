package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
)

// Bot answers inbound chat commands with live registry data.  A nil *Bot is a
// disabled bot.
type Bot struct {
	logger    *slog.Logger
	transport Transport
	registry  *registry.Registry
	clock     timeutil.Clock
	done      chan struct{}

	chatID int64
}

// BotConfig is the bot configuration structure.
type BotConfig struct {
	// Logger is used for logging the poll loop.  It must not be nil.
	Logger *slog.Logger

	// Transport is the chat transport polled for commands.  It must not be
	// nil.
	Transport Transport

	// Registry is the client registry answered from.  It must not be nil.
	Registry *registry.Registry

	// Clock must not be nil.
	Clock timeutil.Clock

	// ChatID is the only chat whose commands are answered.
	ChatID int64
}

// NewBot returns a new properly initialized *Bot.  c must not be nil.
func NewBot(c *BotConfig) (b *Bot) {
	return &Bot{
		logger:    c.Logger,
		transport: c.Transport,
		registry:  c.Registry,
		clock:     c.Clock,
		done:      make(chan struct{}),
		chatID:    c.ChatID,
	}
}

// type check
var _ service.Interface = (*Bot)(nil)

// Start implements the [service.Interface] interface for *Bot.  b may be nil.
func (b *Bot) Start(_ context.Context) (err error) {
	if b == nil {
		return nil
	}

	go b.pollInALoop()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Bot.  b may be
// nil.
func (b *Bot) Shutdown(_ context.Context) (err error) {
	if b == nil {
		return nil
	}

	close(b.done)

	return nil
}

// pollErrorPause is how long the poll loop waits after a transport error
// before polling again.
const pollErrorPause = 5 * time.Second

// pollInALoop long-polls the transport for commands until Shutdown.
func (b *Bot) pollInALoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Unblock the in-flight long poll on shutdown.
	go func() {
		<-b.done
		cancel()
	}()

	defer slogutil.RecoverAndLog(ctx, b.logger)

	var offset int64
	for {
		select {
		case <-b.done:
			return
		default:
			offset = b.pollOnce(ctx, offset)
		}
	}
}

// pollOnce performs one long poll and handles the received updates.  It
// returns the next getUpdates offset.
func (b *Bot) pollOnce(ctx context.Context, offset int64) (next int64) {
	next = offset

	ups, err := b.transport.Receive(ctx, offset)
	if err != nil {
		b.logger.WarnContext(ctx, "polling updates", slogutil.KeyError, err)

		select {
		case <-b.done:
		case <-time.After(pollErrorPause):
		}

		return next
	}

	for _, up := range ups {
		if up.ID >= next {
			next = up.ID + 1
		}

		b.handle(ctx, up)
	}

	return next
}

// handle answers one inbound update.  Updates from other chats are ignored.
func (b *Bot) handle(ctx context.Context, up *Update) {
	if up.ChatID != b.chatID || up.Text == "" {
		return
	}

	cmd := strings.ToLower(strings.TrimSpace(up.Text))
	cmd = strings.TrimPrefix(cmd, "/")
	// Strip the "@botname" suffix of group-chat commands.
	cmd, _, _ = strings.Cut(cmd, "@")

	var reply string
	switch cmd {
	case "ping":
		reply = "pong"
	case "status":
		reply = b.statusReply()
	case "help", "start":
		reply = helpReply
	default:
		reply = fmt.Sprintf("Unknown command %q.\n\n%s", cmd, helpReply)
	}

	err := b.transport.Send(ctx, reply)
	if err != nil {
		b.logger.WarnContext(ctx, "replying", "cmd", cmd, slogutil.KeyError, err)
	}
}

// helpReply is the reply to the help command and to unknown commands.
const helpReply = `<b>Commands</b>
/ping — check that the server is responsive
/status — list known clients and their states
/help — this message`

// statusReply renders the current registry snapshot.
func (b *Bot) statusReply() (reply string) {
	recs := b.registry.Snapshot()
	if len(recs) == 0 {
		return "No clients have reported yet."
	}

	now := b.clock.Now()

	sb := &strings.Builder{}
	_, _ = fmt.Fprintf(sb, "<b>Clients (%d)</b>\n", len(recs))
	for _, rec := range recs {
		_, _ = fmt.Fprintf(
			sb,
			"<code>%s</code>: %s, %s, seen %s\n",
			rec.ID,
			rec.State,
			rec.Keepalive.PublicIP,
			humanSince(now, rec.LastSeen),
		)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// humanSince is a convenience wrapper for rendering last-seen instants.
func humanSince(now, t time.Time) (s string) {
	if t.IsZero() {
		return "never"
	}

	return now.Sub(t).Round(time.Second).String() + " ago"
}
