package apisvc

import (
	"crypto/subtle"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/metrics"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// middleware wraps h into the full API middleware chain: request logging,
// source allowlisting, rate limiting, and API key authentication, applied in
// that order.
func (svc *Service) middleware(h http.Handler) (wrapped http.Handler) {
	return svc.logMw(svc.allowlistMw(svc.ratelimitMw(svc.authMw(h))))
}

// logMw adds a request-scoped logger to the context and logs the request
// start and finish with the response code.
func (svc *Service) logMw(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add(httphdr.Server, vsenthttp.UserAgent())

		l := svc.logger.With(
			"raddr", r.RemoteAddr,
			"method", r.Method,
			"request_uri", r.RequestURI,
		)

		ctx := slogutil.ContextWithLogger(r.Context(), l)
		r = r.WithContext(ctx)

		rw := &codeRecorderResponseWriter{
			ResponseWriter: w,
		}

		l.DebugContext(ctx, "started")
		defer func() { l.DebugContext(ctx, "finished", "code", rw.code) }()

		h.ServeHTTP(rw, r)
	}

	return http.HandlerFunc(f)
}

// allowlistMw rejects requests from sources outside the configured subnets.
// With no allowlist configured every source is admitted.
func (svc *Service) allowlistMw(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		if svc.allowlist == nil {
			h.ServeHTTP(w, r)

			return
		}

		ip, ok := svc.remoteAddr(r)
		if !ok || !svc.allowlist.Contains(ip) {
			vsenthttp.WriteJSONError(w, r, http.StatusForbidden, "forbidden", "")

			return
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// ratelimitMw rejects requests over the per-IP limit with a 429 and a
// Retry-After header.
func (svc *Service) ratelimitMw(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		ip, ok := svc.remoteAddr(r)
		if !ok {
			// Requests with an unparsable source share one bucket.
			ip = netip.IPv4Unspecified()
		}

		allowed, retryAfter := svc.limiter.Allow(ip, svc.clock.Now())
		if allowed {
			h.ServeHTTP(w, r)

			return
		}

		metrics.RateLimitDroppedTotal.Inc()
		metrics.KeepalivesTotal.WithLabelValues("ratelimited").Inc()

		secs := int(retryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}

		w.Header().Set(vsenthttp.HdrRetryAfter, strconv.Itoa(secs))
		vsenthttp.WriteJSON(w, r, http.StatusTooManyRequests, &rateLimitedResp{
			Error:      "rate_limited",
			RetryAfter: secs,
		})
	}

	return http.HandlerFunc(f)
}

// rateLimitedResp is the body of a 429 response.
type rateLimitedResp struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
}

// authMw rejects requests without the expected API key.  An empty configured
// key disables authentication.
func (svc *Service) authMw(h http.Handler) (wrapped http.Handler) {
	f := func(w http.ResponseWriter, r *http.Request) {
		if svc.apiKey != "" {
			got := r.Header.Get(vsenthttp.HdrAPIKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(svc.apiKey)) != 1 {
				metrics.KeepalivesTotal.WithLabelValues("unauthorized").Inc()
				vsenthttp.WriteJSONError(w, r, http.StatusUnauthorized, "unauthorized", "")

				return
			}
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// remoteAddr parses the source IP of r.
func (svc *Service) remoteAddr(r *http.Request) (ip netip.Addr, ok bool) {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, false
	}

	return ap.Addr().Unmap(), true
}

// codeRecorderResponseWriter wraps an [http.ResponseWriter] allowing to save
// the response code.
type codeRecorderResponseWriter struct {
	http.ResponseWriter

	code int
}

// type check
var _ http.ResponseWriter = (*codeRecorderResponseWriter)(nil)

// WriteHeader implements [http.ResponseWriter] for
// *codeRecorderResponseWriter.
func (w *codeRecorderResponseWriter) WriteHeader(code int) {
	w.code = code

	w.ResponseWriter.WriteHeader(code)
}
