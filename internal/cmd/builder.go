package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/apisvc"
	"github.com/agigante80/VPNSentinel-sub000/internal/dashsvc"
	"github.com/agigante80/VPNSentinel-sub000/internal/errcoll"
	"github.com/agigante80/VPNSentinel-sub000/internal/geodb"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/healthsvc"
	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/agigante80/VPNSentinel-sub000/internal/ratelimit"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/agigante80/VPNSentinel-sub000/internal/sweeper"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
)

// Timeouts of the builder and its services.
const (
	shutdownTimeout = 30 * time.Second

	// selfViewTTL is how long the cached server identity stays fresh.
	selfViewTTL = 10 * time.Minute

	// refreshTimeout is the context timeout of one background refresh.
	refreshTimeout = 1 * time.Minute

	// listenerTimeout is the read and write timeout of the API listener.
	listenerTimeout = 30 * time.Second

	// geoDBRefreshIvl is how often the optional country database file is
	// reopened to pick up updates.
	geoDBRefreshIvl = 24 * time.Hour
)

// builderConfig contains the common dependencies of the builder.
type builderConfig struct {
	envs       *environment
	conf       *configuration
	baseLogger *slog.Logger
	errColl    errcoll.Interface
}

// builder contains the initialized services of VPN Sentinel.
type builder struct {
	envs       *environment
	conf       *configuration
	baseLogger *slog.Logger
	logger     *slog.Logger
	errColl    errcoll.Interface
	clock      timeutil.Clock
	sigHdlr    *service.SignalHandler

	// The fields below are initialized later by calling the builder's
	// methods.  Keep them sorted.

	geoDB    *geodb.File
	notifier *notifier.Notifier
	registry *registry.Registry
	selfView *selfview.SelfView
}

// newBuilder returns a new properly initialized *builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		envs:       c.envs,
		conf:       c.conf,
		baseLogger: c.baseLogger,
		logger:     c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		errColl:    c.errColl,
		clock:      timeutil.SystemClock{},
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// newSlogErrorHandler is a convenient wrapper around
// [service.NewSlogErrorHandler].
func newSlogErrorHandler(baseLogger *slog.Logger, prefix string) (h *service.SlogErrorHandler) {
	return service.NewSlogErrorHandler(
		baseLogger.With(slogutil.KeyPrefix, prefix),
		slog.LevelError,
		"refresh failed",
	)
}

// initGeoDB opens the optional country database.
func (b *builder) initGeoDB(ctx context.Context) (err error) {
	if b.envs.GeoIPCountryPath == "" {
		b.logger.DebugContext(ctx, "geoip fallback disabled")

		return nil
	}

	b.geoDB, err = geodb.NewFile(&geodb.FileConfig{
		Logger: logger(b.baseLogger, "geodb"),
		Path:   b.envs.GeoIPCountryPath,
	})
	if err != nil {
		return fmt.Errorf("initializing geodb: %w", err)
	}

	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(refreshTimeout),
		ErrorHandler:       newSlogErrorHandler(b.baseLogger, "geodb_refresh"),
		Refresher:          b.geoDB,
		Schedule:           timeutil.NewConstSchedule(geoDBRefreshIvl),
		RefreshOnShutdown:  false,
	})

	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting geodb refresher: %w", err)
	}

	b.sigHdlr.AddService(refr)

	b.logger.DebugContext(ctx, "initialized geodb", "path", b.envs.GeoIPCountryPath)

	return nil
}

// initSelfView initializes the server's own identity view and its background
// refresher.
func (b *builder) initSelfView(ctx context.Context) (err error) {
	tracer, err := geolookup.NewTracer(geolookup.DefaultTraceURL, 0)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}

	b.selfView = selfview.New(&selfview.Config{
		Logger: logger(b.baseLogger, "selfview"),
		Lookup: geolookup.NewChain(&geolookup.ChainConfig{
			Logger: logger(b.baseLogger, "geolookup"),
			Mode:   geolookup.ModeAuto,
		}),
		Tracer: tracer,
		Clock:  b.clock,
		TTL:    selfViewTTL,
	})

	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(refreshTimeout),
		ErrorHandler:       newSlogErrorHandler(b.baseLogger, "selfview_refresh"),
		Refresher:          b.selfView,
		Schedule:           timeutil.NewConstSchedule(selfViewTTL),
		RefreshOnShutdown:  false,
	})

	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting selfview refresher: %w", err)
	}

	b.sigHdlr.AddService(refr)

	b.logger.DebugContext(ctx, "initialized self view")

	return nil
}

// initRegistry initializes the client registry.
func (b *builder) initRegistry(ctx context.Context) (err error) {
	var fallback geodb.Interface
	if b.geoDB != nil {
		fallback = b.geoDB
	}

	b.registry = registry.New(&registry.Config{
		Logger:           logger(b.baseLogger, "registry"),
		Clock:            b.clock,
		ServerIP:         b.selfView.IP,
		GeoDB:            fallback,
		OfflineThreshold: time.Duration(b.envs.OfflineThresholdSecs) * time.Second,
	})

	b.logger.DebugContext(ctx, "initialized registry")

	return nil
}

// initNotifier initializes the notifier and the inbound bot when the notifier
// mode and the credentials allow it.
func (b *builder) initNotifier(ctx context.Context) (err error) {
	mode := b.envs.notifierMode()
	hasCreds := b.envs.TelegramToken != "" && b.envs.TelegramChatID != 0

	if mode == notifier.ModeOff || (mode == notifier.ModeAuto && !hasCreds) {
		b.logger.InfoContext(ctx, "notifier disabled", "mode", mode)

		return nil
	}

	transport, err := notifier.NewTelegram(&notifier.TelegramConfig{
		Token:  b.envs.TelegramToken,
		ChatID: b.envs.TelegramChatID,
	})
	if err != nil {
		return fmt.Errorf("initializing notifier transport: %w", err)
	}

	b.notifier = notifier.New(&notifier.Config{
		Logger:    logger(b.baseLogger, "notifier"),
		ErrColl:   b.errColl,
		Transport: transport,
		Clock:     b.clock,
		ServerIP:  b.selfView.IP,
	})

	err = b.notifier.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting notifier: %w", err)
	}

	b.sigHdlr.AddService(b.notifier)

	bot := notifier.NewBot(&notifier.BotConfig{
		Logger:    logger(b.baseLogger, "bot"),
		Transport: transport,
		Registry:  b.registry,
		Clock:     b.clock,
		ChatID:    b.envs.TelegramChatID,
	})

	err = bot.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting bot: %w", err)
	}

	b.sigHdlr.AddService(bot)

	b.logger.DebugContext(ctx, "initialized notifier")

	return nil
}

// initSweeper initializes the offline sweep worker.
func (b *builder) initSweeper(ctx context.Context) (err error) {
	s := sweeper.New(&sweeper.Config{
		Logger:   logger(b.baseLogger, "sweeper"),
		Registry: b.registry,
		Notifier: b.notifier,
		Clock:    b.clock,
	})

	ivl := time.Duration(b.envs.SweepIntervalSecs) * time.Second
	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(refreshTimeout),
		ErrorHandler:       newSlogErrorHandler(b.baseLogger, "sweeper_refresh"),
		Refresher:          s,
		Schedule:           timeutil.NewConstSchedule(ivl),
		RefreshOnShutdown:  false,
	})

	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting sweeper: %w", err)
	}

	b.sigHdlr.AddService(refr)

	b.logger.DebugContext(ctx, "initialized sweeper", "interval", ivl)

	return nil
}

// initAPI initializes and starts the keepalive API listener.
func (b *builder) initAPI(ctx context.Context) (err error) {
	if b.envs.APIKey == "" {
		b.logger.WarnContext(ctx, "api key is empty, authentication disabled")
	}

	allowlist, err := b.envs.allowlist()
	if err != nil {
		// Validated earlier; be defensive anyway.
		return fmt.Errorf("parsing allowlist: %w", err)
	}

	svc := apisvc.New(&apisvc.Config{
		Logger:   logger(b.baseLogger, "apisvc"),
		Registry: b.registry,
		SelfView: b.selfView,
		Notifier: b.notifier,
		RateLimiter: ratelimit.New(&ratelimit.Config{
			Clock: b.clock,
			Limit: int(b.envs.RateLimit),
		}),
		Clock:       b.clock,
		Allowlist:   allowlist,
		Addr:        netutil.JoinHostPort(b.envs.ListenAddr.String(), b.envs.APIPort),
		APIPath:     b.envs.APIPath,
		APIKey:      b.envs.APIKey,
		MaxBodySize: b.envs.MaxBodySize,
		Timeout:     listenerTimeout,
	})

	err = svc.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting api service: %w", err)
	}

	b.sigHdlr.AddService(svc)

	return nil
}

// initHealth initializes and starts the health listener.
func (b *builder) initHealth(ctx context.Context) (err error) {
	svc := healthsvc.New(&healthsvc.Config{
		Logger:      logger(b.baseLogger, "healthsvc"),
		Registry:    b.registry,
		Clock:       b.clock,
		Addr:        netutil.JoinHostPort(b.envs.ListenAddr.String(), b.envs.HealthPort),
		EnablePprof: bool(b.envs.PprofEnabled),
	})

	err = svc.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting health service: %w", err)
	}

	b.sigHdlr.AddService(svc)

	return nil
}

// initDashboard initializes and starts the dashboard listener when it is
// enabled.
func (b *builder) initDashboard(ctx context.Context) (err error) {
	if !bool(b.envs.DashboardEnabled) {
		b.logger.InfoContext(ctx, "dashboard disabled")

		return nil
	}

	svc := dashsvc.New(&dashsvc.Config{
		Logger:   logger(b.baseLogger, "dashsvc"),
		Registry: b.registry,
		SelfView: b.selfView,
		Clock:    b.clock,
		Addr:     netutil.JoinHostPort(b.envs.ListenAddr.String(), b.envs.DashboardPort),
	})

	err = svc.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting dashboard service: %w", err)
	}

	b.sigHdlr.AddService(svc)

	return nil
}

// announceStart queues the server-started notification.
func (b *builder) announceStart(ctx context.Context) {
	b.notifier.Notify(ctx, notifier.ServerStartedMessage(
		version.Version(),
		version.Revision(),
		time.Duration(b.envs.OfflineThresholdSecs)*time.Second,
		time.Duration(b.envs.SweepIntervalSecs)*time.Second,
	))
}

// handleSignals blocks and processes signals from the OS, returning the exit
// code for the process.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	return b.sigHdlr.Handle(ctx)
}
