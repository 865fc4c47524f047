package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/platform/metrics"
)

// RequestMetrics records a request counter and latency histogram per chi
// route pattern, and logs the finished request at debug level. Unmatched
// routes are recorded as "unmatched" to bound label cardinality.
func RequestMetrics(m *metrics.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			elapsed := time.Since(start)

			m.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), elapsed)
			logger.FromContext(r.Context()).DebugContext(r.Context(), "request finished",
				slog.String("route", route),
				slog.String("method", r.Method),
				slog.Int("status", status),
				slog.Duration("elapsed", elapsed))
		})
	}
}
