// internal/middleware/logging.go
//
// Access logging and request latency.
//
// Context
// -------
// One structured line per request goes to the global zap logger with the
// chi request id, status, bytes written, and duration.  The same duration
// feeds the http_request_duration_seconds histogram, labelled by the chi
// route pattern so path parameters do not explode the label space.
//
// Notes
// -----
//   - 5xx responses log at warn, everything else at info; /healthz and
//     /metrics are skipped to keep probes out of the log.
//   - Requests that match no route are labelled "unmatched".
//   - Oxford commas, two spaces after periods.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/metrics"
)

var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// RequestLog logs and times each request.  Mount it after chi's RequestID.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(status/100)+"xx").
			Observe(elapsed.Seconds())

		if quietPaths[r.URL.Path] {
			return
		}
		fields := []zap.Field{
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("host", r.Host),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
		}
		if status >= 500 {
			zap.L().Warn("request", fields...)
			return
		}
		zap.L().Info("request", fields...)
	})
}
