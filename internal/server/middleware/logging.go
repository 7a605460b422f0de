package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Logger emits one structured log line per request: method, path, status,
// duration, response size, request ID, remote address, and the
// authenticated principal when one is attached, so query activity is
// attributable to a specific admin or API key role. Log level follows the
// status class: 5xx at error, 4xx at warn, everything else at info.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", rec.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if p := GetPrincipal(r.Context()); p != nil {
				attrs = append(attrs, "principal", principalLabel(p))
			}

			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// principalLabel renders a principal as "admin:<id>" or "role:<id>" for the
// access log. Key material never appears here.
func principalLabel(p *Principal) string {
	if p.IsAdmin {
		return "admin:" + strconv.FormatInt(p.AdminID, 10)
	}
	return "role:" + strconv.FormatInt(p.RoleID, 10)
}

// statusRecorder captures the status code and byte count written by
// downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the wrapped ResponseWriter so http.Flusher and friends
// still work through the middleware chain.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
