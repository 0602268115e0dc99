// Package cmd is the VPN Sentinel server entry point.  It contains the
// environment and file configuration utilities, the service builder, and the
// signal processing logic.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/metrics"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"golang.org/x/sys/unix"
)

// Main is the entry point of the server.
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

	mainLogger.InfoContext(
		ctx,
		"vpnsentinel server starting",
		"version", version.Version(),
		"revision", version.Revision(),
		"branch", version.Branch(),
		"commit_time", version.CommitTime(),
	)

	errColl := errors.Must(envs.buildErrColl())

	c := errors.Must(parseConfig(envs.ConfPath))
	errors.Check(c.Validate())
	c.apply(envs)

	b := newBuilder(&builderConfig{
		envs:       envs,
		conf:       c,
		baseLogger: baseLogger,
		errColl:    errColl,
	})

	errors.Check(b.initGeoDB(ctx))

	errors.Check(b.initSelfView(ctx))

	errors.Check(b.initRegistry(ctx))

	errors.Check(b.initNotifier(ctx))

	errors.Check(b.initSweeper(ctx))

	errors.Check(b.initAPI(ctx))

	errors.Check(b.initHealth(ctx))

	errors.Check(b.initDashboard(ctx))

	b.announceStart(ctx)

	// Signal that the server is started.
	metrics.SetUpGauge(
		version.Version(),
		version.CommitTime(),
		version.Branch(),
		version.Revision(),
		runtime.Version(),
	)

	// Unregister the signal behavior for ctx.
	stop()
	ctx = context.WithoutCancel(ctx)

	os.Exit(b.handleSignals(ctx))
}
