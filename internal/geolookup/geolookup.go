// Package geolookup fetches the observable network identity of the current
// host: its public IP address and geolocation from HTTP providers, and the
// location of the DNS resolver it actually uses.
package geolookup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
)

// Result is a normalized geolocation observation.  Missing fields contain
// [vsent.UnknownField], or [vsent.UnknownIP] for the IP.
type Result struct {
	PublicIP string
	Country  string
	City     string
	Region   string
	Org      string
	Timezone string

	// Provider is the name of the provider that produced the result.
	Provider string
}

// Interface is the interface for geolocation lookups.
type Interface interface {
	// Lookup returns the current public identity of the host.  r is non-nil
	// iff err is nil.
	Lookup(ctx context.Context) (r *Result, err error)
}

// ModeAuto is the provider mode in which providers are tried in their fixed
// order and the first success wins.
const ModeAuto = "auto"

// Chain is an [Interface] implementation that queries a fixed ordered list of
// providers.
type Chain struct {
	logger    *slog.Logger
	providers []*provider

	// mode is either [ModeAuto] or the name of a single forced provider.
	mode string

	callTimeout time.Duration
}

// ChainConfig is the configuration structure for a *Chain.
type ChainConfig struct {
	// Logger is used for logging provider fallbacks.  It must not be nil.
	Logger *slog.Logger

	// Mode is [ModeAuto] or a provider name.  It must be valid, see
	// [ValidateMode].
	Mode string

	// CallTimeout is the timeout for a single provider call.
	CallTimeout time.Duration
}

// defaultCallTimeout is the per-provider call timeout used when the
// configuration does not set one.
const defaultCallTimeout = 10 * time.Second

// NewChain returns a new provider chain.  c must not be nil and must be
// valid.
func NewChain(c *ChainConfig) (ch *Chain) {
	timeout := c.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Chain{
		logger:      c.Logger,
		providers:   newProviders(timeout),
		mode:        c.Mode,
		callTimeout: timeout,
	}
}

// ValidateMode returns an error if mode is neither [ModeAuto] nor a known
// provider name.
func ValidateMode(mode string) (err error) {
	if mode == ModeAuto {
		return nil
	}

	for _, name := range ProviderNames() {
		if mode == name {
			return nil
		}
	}

	return fmt.Errorf("provider mode: %w: %q", errors.ErrBadEnumValue, mode)
}

// type check
var _ Interface = (*Chain)(nil)

// Lookup implements the [Interface] interface for *Chain.  In auto mode it
// tries providers in order and returns the first usable result; in forced
// mode it tries only the configured provider.
func (ch *Chain) Lookup(ctx context.Context) (r *Result, err error) {
	var errs []error
	for _, p := range ch.providers {
		if ch.mode != ModeAuto && ch.mode != p.name {
			continue
		}

		r, err = ch.lookup(ctx, p)
		if err == nil {
			ch.logger.DebugContext(ctx, "geolocation fetched", "provider", p.name)

			return r, nil
		}

		ch.logger.WarnContext(
			ctx,
			"geolocation provider failed",
			"provider", p.name,
			slogutil.KeyError, err,
		)

		errs = append(errs, fmt.Errorf("provider %s: %w", p.name, err))
	}

	return nil, fmt.Errorf("geolocation: all providers failed: %w", errors.Join(errs...))
}

// lookup queries a single provider with the per-call timeout.
func (ch *Chain) lookup(ctx context.Context, p *provider) (r *Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, ch.callTimeout)
	defer cancel()

	r, err = p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	r.Provider = p.name
	fillUnknown(r)

	return r, nil
}

// fillUnknown replaces empty fields of r with the sentinel values.
func fillUnknown(r *Result) {
	if r.PublicIP == "" {
		r.PublicIP = vsent.UnknownIP
	}

	for _, f := range []*string{&r.Country, &r.City, &r.Region, &r.Org, &r.Timezone} {
		if *f == "" {
			*f = vsent.UnknownField
		}
	}
}
