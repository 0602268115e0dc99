// Package healthsvc contains the operational HTTP surface of VPN Sentinel: the
// health probes, prometheus metrics, and pprof endpoints.
package healthsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service is the health HTTP service of VPN Sentinel.
type Service struct {
	logger   *slog.Logger
	registry *registry.Registry
	clock    timeutil.Clock
	http     *http.Server

	startedAt time.Time
}

// Config is the health service configuration structure.
type Config struct {
	// Logger is used for request logging.  It must not be nil.
	Logger *slog.Logger

	// Registry supplies the client counts reported by the probes.  It must
	// not be nil.
	Registry *registry.Registry

	// Clock must not be nil.
	Clock timeutil.Clock

	// Addr is the address the service listens on.  It must not be empty.
	Addr string

	// EnablePprof adds the pprof handlers to the listener.
	EnablePprof bool
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger:    c.Logger,
		registry:  c.Registry,
		clock:     c.Clock,
		startedAt: c.Clock.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", svc.middleware(http.HandlerFunc(svc.serveHealth)))
	mux.Handle("GET /health/ready", svc.middleware(http.HandlerFunc(svc.serveHealth)))
	mux.Handle("GET /health/startup", svc.middleware(http.HandlerFunc(svc.serveHealth)))
	mux.Handle("GET /metrics", svc.middleware(promhttp.Handler()))

	if c.EnablePprof {
		httputil.RoutePprof(mux)
	}

	svc.http = &http.Server{
		Addr:     c.Addr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
	}

	return svc
}

// Handler returns the root handler of the service, for tests.
func (svc *Service) Handler() (h http.Handler) {
	return svc.http.Handler
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.
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
		return fmt.Errorf("health server shutdown: %w", err)
	}

	return nil
}

// middleware adds the Server header and debug-level request logging.
func (svc *Service) middleware(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add(httphdr.Server, vsenthttp.UserAgent())

		l := svc.logger.With("raddr", r.RemoteAddr, "request_uri", r.RequestURI)
		r = r.WithContext(slogutil.ContextWithLogger(r.Context(), l))

		l.DebugContext(r.Context(), "started")
		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// healthResp is the body of a health probe response.
type healthResp struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ClientsCount  int    `json:"clients_count"`
	ClientsOnline int    `json:"clients_online"`
}

// serveHealth is the handler of the health probes.  The server is healthy as
// long as it can answer at all; the body carries basic liveness data.
func (svc *Service) serveHealth(w http.ResponseWriter, r *http.Request) {
	total, online := svc.registry.OnlineCount()

	vsenthttp.WriteJSON(w, r, http.StatusOK, &healthResp{
		Status:        "ok",
		Version:       version.Version(),
		UptimeSeconds: int64(svc.clock.Now().Sub(svc.startedAt).Seconds()),
		ClientsCount:  total,
		ClientsOnline: online,
	})
}
