package middleware

import (
	"net/http"
	"time"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging emits one structured access log line per request and plants
// a request-scoped logger on the context.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			reqLogger := logger.WithFields(map[string]interface{}{
				"request_id": contextkeys.GetRequestID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ctx := contextkeys.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(sw, r.WithContext(ctx))

			reqLogger.WithFields(map[string]interface{}{
				"status":      sw.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   httputil.ClientIP(r),
			}).Info("request")
		})
	}
}
