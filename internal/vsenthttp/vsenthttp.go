// Package vsenthttp contains common constants, functions, and types for
// working with HTTP in VPN Sentinel.
package vsenthttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
)

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextHTML        = "text/html; charset=utf-8"
	HdrValTextPlain       = "text/plain"
)

// Header name constants missing from golibs.
const (
	HdrRetryAfter = "Retry-After"
	HdrAPIKey     = "X-API-Key"
)

// userAgent is the cached User-Agent string for VPN Sentinel.
var userAgent = version.Name() + "/" + version.Version()

// UserAgent returns the ID of the service as a User-Agent string.  It can
// also be used as the value of the Server HTTP header.
func UserAgent() (ua string) {
	return userAgent
}

// WriteJSON writes v to w as JSON with the given status code.  Encoding
// errors are logged to the logger in the context at debug level, since by the
// time they occur the header has already been written.
func WriteJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set(httphdr.ContentType, HdrValApplicationJSON)
	w.Header().Set(httphdr.Server, UserAgent())
	w.WriteHeader(code)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		ctx := r.Context()
		l, ok := slogutil.LoggerFromContext(ctx)
		if !ok {
			l = slog.Default()
		}

		l.DebugContext(ctx, "writing json response", slogutil.KeyError, err)
	}
}

// ErrorResp is the JSON error body returned by API handlers.
type ErrorResp struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSONError writes a minimal JSON error body to w.
func WriteJSONError(w http.ResponseWriter, r *http.Request, code int, kind, msg string) {
	WriteJSON(w, r, code, &ErrorResp{
		Error:   kind,
		Message: msg,
	})
}
