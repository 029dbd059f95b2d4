package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"screencast/internal/logging"
)

var healthPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// LogOptions selects which requests the access log skips.
type LogOptions struct {
	// Objects logs /objects/ downloads, which the player issues on every seek.
	Objects bool
	// HealthChecks logs orchestrator health checks.
	HealthChecks bool
}

// statusWriter records what a handler sent.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logger writes one W3C extended log line per request:
//
//	date time c-ip cs-method cs-uri-stem x-route x-share-id sc-status cs-bytes sc-bytes time-taken sc(Content-Encoding) cs(User-Agent)
//
// x-route and x-share-id come from the route matched by Route, or "-".
func Logger(opts LogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLog(r.URL.Path, opts) {
				next.ServeHTTP(w, r)
				return
			}

			r, info := withRouteInfo(r)
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r)

			//nolint:gosec // G706: accessLine sanitizes every client-supplied field.
			logging.Info("%s", accessLine(r, info, sw, time.Since(start), time.Now().UTC()))
		})
	}
}

func accessLine(r *http.Request, info *routeInfo, sw *statusWriter, took time.Duration, now time.Time) string {
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}
	reqBytes := r.ContentLength
	if reqBytes < 0 {
		reqBytes = 0
	}
	return fmt.Sprintf("%s %s %s %s %s %s %s %d %d %d %d %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		orDash(sanitizeLogField(clientIP(r))),
		sanitizeLogField(r.Method),
		orDash(sanitizeLogField(r.URL.Path)),
		orDash(info.template),
		orDash(sanitizeLogField(info.shareID)),
		status,
		reqBytes,
		sw.bytes,
		took.Milliseconds(),
		orDash(sw.Header().Get("Content-Encoding")),
		quoteW3C(orDash(sanitizeLogField(r.Header.Get("User-Agent")))),
	)
}

func skipLog(path string, opts LogOptions) bool {
	if healthPaths[path] {
		return !opts.HealthChecks
	}
	if strings.HasPrefix(path, "/objects/") {
		return !opts.Objects
	}
	return false
}

// clientIP prefers the first X-Forwarded-For hop, since the server is
// normally deployed behind an ingress.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitizeLogField drops control characters so a client cannot forge log
// lines or inject terminal escapes. Newlines become spaces.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// quoteW3C quotes a field containing spaces, doubling embedded quotes.
func quoteW3C(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
