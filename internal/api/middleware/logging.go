package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/zonewatch/internal/log"
)

// RequestLogger emits one structured completion log per request. Probe
// endpoints log at debug so a tight liveness interval does not drown the log.
// When tracing is enabled the line carries trace_id and span_id, keyed to the
// server span opened by OTelHTTP earlier in the chain.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lw := &logWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(lw, r)

			logger := log.WithTraceContext(r.Context()).
				With().Str(log.FieldComponent, "http").Logger()
			evt := logger.Info()
			if isProbePath(r.URL.Path) {
				evt = logger.Debug()
			}
			evt.
				Str("event", "http.request").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", lw.statusCode).
				Int("bytes", lw.bytesWritten).
				Str(log.FieldRequestID, log.RequestIDFromContext(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Dur(log.FieldDuration, time.Since(start)).
				Msg("request completed")
		})
	}
}

func isProbePath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// logWriter wraps http.ResponseWriter to capture the final status and size.
type logWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (lw *logWriter) WriteHeader(statusCode int) {
	if !lw.written {
		lw.statusCode = statusCode
		lw.written = true
	}
	lw.ResponseWriter.WriteHeader(statusCode)
}

func (lw *logWriter) Write(b []byte) (int, error) {
	if !lw.written {
		lw.WriteHeader(http.StatusOK)
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.bytesWritten += n
	return n, err
}
