// Package apisvc contains the keepalive ingestion HTTP API of VPN Sentinel.
package apisvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/agigante80/VPNSentinel-sub000/internal/ratelimit"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/c2h5oh/datasize"
)

// Service is the keepalive API HTTP service of VPN Sentinel.
type Service struct {
	logger   *slog.Logger
	registry *registry.Registry
	selfView *selfview.SelfView
	notifier *notifier.Notifier
	limiter  ratelimit.Interface
	clock    timeutil.Clock

	// allowlist is the optional source IP allowlist.  A nil allowlist admits
	// every source.
	allowlist netutil.SubnetSet

	http *http.Server

	apiPath string
	apiKey  string

	maxBodySize datasize.ByteSize
}

// Config is the API service configuration structure.
type Config struct {
	// Logger is used for request logging.  It must not be nil.
	Logger *slog.Logger

	// Registry is the client registry observations are applied to.  It must
	// not be nil.
	Registry *registry.Registry

	// SelfView provides the server's own identity for the status endpoint.
	// It must not be nil.
	SelfView *selfview.SelfView

	// Notifier receives the transitions emitted by accepted keepalives.  It
	// may be nil, in which case transitions are only logged.
	Notifier *notifier.Notifier

	// RateLimiter is the per-IP limiter.  It must not be nil.
	RateLimiter ratelimit.Interface

	// Clock must not be nil.
	Clock timeutil.Clock

	// Allowlist is the optional source subnet allowlist.  nil admits all.
	Allowlist netutil.SubnetSet

	// Addr is the address the service listens on.  It must not be empty.
	Addr string

	// APIPath is the base path of the API, e.g. "/api/v1".  It must not be
	// empty and must not end with a slash.
	APIPath string

	// APIKey is the shared key expected in the X-API-Key header.  An empty
	// key disables authentication.
	APIKey string

	// MaxBodySize is the request body size limit.  It must be positive.
	MaxBodySize datasize.ByteSize

	// Timeout is the read and write timeout of the listener.  It must be
	// positive.
	Timeout time.Duration
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger:      c.Logger,
		registry:    c.Registry,
		selfView:    c.SelfView,
		notifier:    c.Notifier,
		limiter:     c.RateLimiter,
		clock:       c.Clock,
		allowlist:   c.Allowlist,
		apiPath:     c.APIPath,
		apiKey:      c.APIKey,
		maxBodySize: c.MaxBodySize,
	}

	mux := http.NewServeMux()
	mux.Handle(
		fmt.Sprintf("POST %s/keepalive", c.APIPath),
		svc.middleware(http.HandlerFunc(svc.serveKeepalive)),
	)
	mux.Handle(
		fmt.Sprintf("GET %s/status", c.APIPath),
		svc.middleware(http.HandlerFunc(svc.serveStatus)),
	)

	svc.http = &http.Server{
		Addr:         c.Addr,
		Handler:      mux,
		ErrorLog:     slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
	}

	return svc
}

// Handler returns the root handler of the service, for tests.
func (svc *Service) Handler() (h http.Handler) {
	return svc.http.Handler
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// serving but does not wait for the listener to actually go online.
func (svc *Service) Start(ctx context.Context) (err error) {
	go func() {
		defer slogutil.RecoverAndLog(ctx, svc.logger)

		svc.logger.InfoContext(ctx, "listening", "addr", svc.http.Addr)

		sErr := svc.http.ListenAndServe()
		if !errors.Is(sErr, http.ErrServerClosed) {
			svc.logger.ErrorContext(ctx, "listener failed", slogutil.KeyError, sErr)
		}
	}()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}
