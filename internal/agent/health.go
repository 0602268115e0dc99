package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// HealthService is the optional local liveness listener of the agent, for
// container orchestrators.  A nil *HealthService is a disabled one.
type HealthService struct {
	logger *slog.Logger
	http   *http.Server
}

// HealthConfig is the agent health listener configuration structure.
type HealthConfig struct {
	// Logger is used for logging the listener.  It must not be nil.
	Logger *slog.Logger

	// Addr is the address the listener binds to.  It must not be empty.
	Addr string
}

// NewHealthService returns a new properly initialized *HealthService.  c must
// not be nil.
func NewHealthService(c *HealthConfig) (svc *HealthService) {
	svc = &HealthService{
		logger: c.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", svc.serveHealth)

	svc.http = &http.Server{
		Addr:     c.Addr,
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(c.Logger.Handler(), slog.LevelDebug),
	}

	return svc
}

// type check
var _ service.Interface = (*HealthService)(nil)

// Start implements the [service.Interface] interface for *HealthService.  svc
// may be nil.
func (svc *HealthService) Start(ctx context.Context) (err error) {
	if svc == nil {
		return nil
	}

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

// Shutdown implements the [service.Interface] interface for *HealthService.
// svc may be nil.
func (svc *HealthService) Shutdown(ctx context.Context) (err error) {
	if svc == nil {
		return nil
	}

	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("agent health shutdown: %w", err)
	}

	return nil
}

// healthResp is the body of the agent liveness response.
type healthResp struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// serveHealth is the handler of GET /health.
func (svc *HealthService) serveHealth(w http.ResponseWriter, r *http.Request) {
	vsenthttp.WriteJSON(w, r, http.StatusOK, &healthResp{
		Status:  "ok",
		Version: version.Version(),
	})
}
