package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

type traceKey struct{}

// RequestID tags the request with a trace id, taken from X-Trace-ID or
// generated, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), traceKey{}, traceID)
		ctx = logger.With(ctx, "traceID", traceID)
		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TraceID returns the id assigned by RequestID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
