// Package dashsvc contains the read-only HTML dashboard of VPN Sentinel.
package dashsvc

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/registry"
	"github.com/agigante80/VPNSentinel-sub000/internal/selfview"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// refreshSeconds is the meta-refresh interval of the dashboard page.
const refreshSeconds = 30

// Service is the dashboard HTTP service of VPN Sentinel.
type Service struct {
	logger   *slog.Logger
	registry *registry.Registry
	selfView *selfview.SelfView
	clock    timeutil.Clock
	tmpl     *template.Template
	http     *http.Server
}

// Config is the dashboard service configuration structure.
type Config struct {
	// Logger is used for request logging.  It must not be nil.
	Logger *slog.Logger

	// Registry supplies the client rows.  It must not be nil.
	Registry *registry.Registry

	// SelfView supplies the server panel.  It must not be nil.
	SelfView *selfview.SelfView

	// Clock must not be nil.
	Clock timeutil.Clock

	// Addr is the address the service listens on.  It must not be empty.
	Addr string
}

// New returns a new properly initialized *Service.  c must not be nil.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger:   c.Logger,
		registry: c.Registry,
		selfView: c.SelfView,
		clock:    c.Clock,
		tmpl:     template.Must(template.New("dashboard").Parse(dashboardTmpl)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard", svc.serveDashboard)
	mux.Handle(
		"GET /",
		http.RedirectHandler("/dashboard", http.StatusMovedPermanently),
	)

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

// Start implements the [service.Interface] interface for *Service.  svc may
// be nil, in which case the dashboard is disabled.
func (svc *Service) Start(ctx context.Context) (err error) {
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

// Shutdown implements the [service.Interface] interface for *Service.  svc
// may be nil.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	if svc == nil {
		return nil
	}

	err = svc.http.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("dashboard server shutdown: %w", err)
	}

	return nil
}

// pageData is the template data of the dashboard page.
type pageData struct {
	Server      *selfview.View
	Clients     []*clientRow
	Version     string
	GeneratedAt string
	Refresh     int
}

// clientRow is one row of the client table.
type clientRow struct {
	ID       string
	Version  string
	PublicIP string
	Location string
	Provider string
	DNS      string
	LastSeen string
	State    string
	Badge    string
}

// serveDashboard is the handler of GET /dashboard.
func (svc *Service) serveDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := svc.clock.Now()

	recs := svc.registry.Snapshot()
	rows := make([]*clientRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, newClientRow(rec, now))
	}

	data := &pageData{
		Server:      svc.selfView.Current(ctx),
		Clients:     rows,
		Version:     version.Version(),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Refresh:     refreshSeconds,
	}

	w.Header().Set(httphdr.ContentType, vsenthttp.HdrValTextHTML)
	w.Header().Set(httphdr.Server, vsenthttp.UserAgent())

	err := svc.tmpl.Execute(w, data)
	if err != nil {
		svc.logger.DebugContext(ctx, "rendering dashboard", slogutil.KeyError, err)
	}
}

// newClientRow converts a registry record into its table row.
func newClientRow(rec *registry.ClientRecord, now time.Time) (row *clientRow) {
	k := &rec.Keepalive

	return &clientRow{
		ID:       string(rec.ID),
		Version:  rec.Version,
		PublicIP: k.PublicIP,
		Location: fmt.Sprintf("%s, %s, %s", k.Location.City, k.Location.Region, k.Location.Country),
		Provider: k.Location.Org,
		DNS:      fmt.Sprintf("%s (%s)", k.DNSTest.Location, k.DNSTest.Colo),
		LastSeen: vsent.HumanizeSince(now.Sub(rec.LastSeen)),
		State:    string(rec.State),
		Badge:    badgeFor(rec.State),
	}
}

// badgeFor maps a client state to its CSS badge class.
func badgeFor(state vsent.State) (class string) {
	switch state {
	case vsent.StateOnlineSecure:
		return "ok"
	case vsent.StateOnlineDNSLeak, vsent.StateOnlineBypass:
		return "bad"
	case vsent.StateOffline:
		return "off"
	default:
		return "warn"
	}
}

// dashboardTmpl is the single-page dashboard template.
const dashboardTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>VPN Sentinel</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; background: #f7f7f8; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; width: 100%; background: #fff; }
th, td { padding: .5rem .75rem; border-bottom: 1px solid #e3e3e6; text-align: left; font-size: .9rem; }
th { background: #efeff2; }
.badge { padding: .15rem .5rem; border-radius: .75rem; font-size: .8rem; color: #fff; }
.badge.ok { background: #2e9e44; }
.badge.warn { background: #d99a17; }
.badge.bad { background: #cf3434; }
.badge.off { background: #8a8a90; }
.panel { background: #fff; padding: .75rem 1rem; margin-bottom: 1rem; border: 1px solid #e3e3e6; }
footer { margin-top: 1rem; color: #8a8a90; font-size: .8rem; }
</style>
</head>
<body>
<h1>VPN Sentinel</h1>
<div class="panel">
Server IP: <code>{{.Server.IP}}</code> &middot;
Country: {{.Server.Country}} &middot;
City: {{.Server.City}} &middot;
DNS: {{.Server.DNSLocation}}
</div>
<table>
<tr><th>Client</th><th>Version</th><th>Public IP</th><th>Location</th><th>Provider</th><th>DNS</th><th>Last seen</th><th>Status</th></tr>
{{range .Clients}}
<tr>
<td><code>{{.ID}}</code></td>
<td>{{.Version}}</td>
<td><code>{{.PublicIP}}</code></td>
<td>{{.Location}}</td>
<td>{{.Provider}}</td>
<td>{{.DNS}}</td>
<td>{{.LastSeen}}</td>
<td><span class="badge {{.Badge}}">{{.State}}</span></td>
</tr>
{{else}}
<tr><td colspan="8">No clients have reported yet.</td></tr>
{{end}}
</table>
<footer>VPN Sentinel {{.Version}} &middot; generated {{.GeneratedAt}}</footer>
</body>
</html>
`
