// Package sweeper contains the periodic job that marks silent clients offline
// and reports the resulting transitions.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
)

// Sweeper is the offline sweep job.  It is run on a schedule by a refresh
// worker.
type Sweeper struct {
	logger   *slog.Logger
	registry *registry.Registry
	notifier *notifier.Notifier
	clock    timeutil.Clock

	// noClientsReported tracks whether the no-clients-alive condition has
	// already been announced, so that it is reported once per occurrence
	// rather than on every sweep.
	noClientsReported bool
}

// Config is the sweeper configuration structure.
type Config struct {
	// Logger is used for logging sweeps.  It must not be nil.
	Logger *slog.Logger

	// Registry is the registry being swept.  It must not be nil.
	Registry *registry.Registry

	// Notifier receives the emitted transitions.  It may be nil.
	Notifier *notifier.Notifier

	// Clock must not be nil.
	Clock timeutil.Clock
}

// New returns a new properly initialized *Sweeper.  c must not be nil.
func New(c *Config) (s *Sweeper) {
	return &Sweeper{
		logger:   c.Logger,
		registry: c.Registry,
		notifier: c.Notifier,
		clock:    c.Clock,
	}
}

// type check
var _ service.Refresher = (*Sweeper)(nil)

// Refresh implements the [service.Refresher] interface for *Sweeper.  It
// performs one sweep.  The returned error is always nil; sweep results are
// logged and notified instead.
func (s *Sweeper) Refresh(ctx context.Context) (err error) {
	now := s.clock.Now()

	evs := s.registry.Sweep(ctx, now)
	for _, ev := range evs {
		s.notifier.NotifyEvent(ctx, ev)
	}

	total, online := s.registry.OnlineCount()
	if total > 0 && online == 0 {
		if !s.noClientsReported {
			s.noClientsReported = true
			s.logger.WarnContext(ctx, "no clients alive", "total", total)
			s.notifier.Notify(ctx, notifier.NoClientsAliveMessage(now))
		}
	} else {
		s.noClientsReported = false
	}

	return nil
}
