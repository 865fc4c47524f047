package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/labelhive-api/internal/api/shared"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
)

// TraceMiddleware stamps every request with a trace ID. The ID is echoed in
// the X-Trace-ID response header and attached to every record logged with
// the request context. Apply it first so everything downstream sees it.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)
		ctx = logger.WithAttrs(ctx, slog.String("trace_id", traceID))

		w.Header().Set(shared.TraceIDHeader, traceID)

		logger.FromContext(ctx).DebugContext(ctx, "request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
