// Package agentcmd is the VPN Sentinel client agent entry point.
package agentcmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/agent"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"golang.org/x/sys/unix"
)

// Timeouts of the agent.
const (
	shutdownTimeout = 10 * time.Second

	// sampleTimeout is the whole-sample budget: lookup, trace, and POST.
	sampleTimeout = 30 * time.Second

	// postTimeout is the timeout of one keepalive POST.
	postTimeout = 15 * time.Second
)

// Main is the entry point of the agent.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))
	baseLogger := slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	clientID := errors.Must(envs.clientID())
	serverURL := errors.Must(envs.serverURL())

	mainLogger.InfoContext(
		ctx,
		"vpnsentinel agent starting",
		"version", version.Version(),
		"client_id", clientID,
		"server_url", serverURL,
	)

	cli := errors.Must(agent.NewClient(&agent.ClientConfig{
		ServerURL:          serverURL,
		APIPath:            envs.APIPath,
		APIKey:             envs.APIKey,
		CAPath:             envs.TLSCAPath,
		InsecureSkipVerify: bool(envs.TLSInsecureSkipVerify),
		Timeout:            postTimeout,
	}))

	var sink agent.Sink
	if envs.PayloadSinkPath != "" {
		fileSink := errors.Must(agent.NewFileSink(envs.PayloadSinkPath))
		defer func() { errors.Check(fileSink.Close()) }()

		sink = fileSink
	}

	tracer := errors.Must(geolookup.NewTracer(envs.TraceURL, 0))

	// The resolver probe is best-effort diagnostics; hosts without a readable
	// resolver configuration simply run without it.
	resolver, resolverErr := geolookup.NewResolverProbe(0)
	if resolverErr != nil {
		mainLogger.DebugContext(ctx, "resolver probe unavailable", slogutil.KeyError, resolverErr)
	}

	sampler := agent.NewSampler(&agent.SamplerConfig{
		Logger: baseLogger.With(slogutil.KeyPrefix, "sampler"),
		Lookup: geolookup.NewChain(&geolookup.ChainConfig{
			Logger: baseLogger.With(slogutil.KeyPrefix, "geolookup"),
			Mode:   envs.GeoProvider,
		}),
		Tracer:   tracer,
		Resolver: resolver,
		Client:   cli,
		Sink:     sink,
		Clock:    timeutil.SystemClock{},
		ClientID: clientID,
	})

	sigHdlr := service.NewSignalHandler(&service.SignalHandlerConfig{
		Logger:          baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
		ShutdownTimeout: shutdownTimeout,
	})

	ivl := time.Duration(envs.CheckIntervalSecs) * time.Second
	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(sampleTimeout),
		ErrorHandler: service.NewSlogErrorHandler(
			baseLogger.With(slogutil.KeyPrefix, "sampler_refresh"),
			slog.LevelError,
			"sample failed",
		),
		Refresher:         sampler,
		Schedule:          timeutil.NewConstSchedule(ivl),
		RefreshOnShutdown: false,
	})

	errors.Check(refr.Start(context.WithoutCancel(ctx)))
	sigHdlr.AddService(refr)

	if envs.HealthPort != 0 {
		health := agent.NewHealthService(&agent.HealthConfig{
			Logger: baseLogger.With(slogutil.KeyPrefix, "health"),
			Addr:   netutil.JoinHostPort("127.0.0.1", envs.HealthPort),
		})
		errors.Check(health.Start(ctx))
		sigHdlr.AddService(health)
	}

	// Send the first sample immediately instead of waiting a full interval.
	sampleCtx, cancel := context.WithTimeout(ctx, sampleTimeout)
	err := sampler.Refresh(sampleCtx)
	cancel()
	if err != nil {
		mainLogger.WarnContext(ctx, "initial sample failed", slogutil.KeyError, err)
	}

	// Unregister the signal behavior for ctx.
	stop()
	ctx = context.WithoutCancel(ctx)

	os.Exit(sigHdlr.Handle(ctx))
}
