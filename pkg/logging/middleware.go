package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id of an API request in both directions
const RequestIDHeader = "X-Request-ID"

// APIMiddleware tags every API request with an id, reusing the one the client
// sent, and logs the request together with the reactor run that served it.
// reactor returns the log attributes of the current run and may be nil.
// Event stream subscriptions are logged when they open and when they close.
func APIMiddleware(reactor func() []any) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.New().String()
			}
			ctx := WithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, id)

			attrs := []any{"method", r.Method, "path", r.URL.Path}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, "query", r.URL.RawQuery)
			}
			if reactor != nil {
				attrs = append(attrs, reactor()...)
			}

			stream := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
			if stream {
				DebugContext(ctx, "subscription opened", attrs...)
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			attrs = append(attrs, "status", rec.status, "bytes", rec.bytes, "durationMs", time.Since(start).Milliseconds())
			switch {
			case stream:
				DebugContext(ctx, "subscription closed", attrs...)
			case rec.status >= http.StatusInternalServerError:
				ErrorContext(ctx, "api request failed", attrs...)
			case rec.status >= http.StatusBadRequest:
				WarnContext(ctx, "api request rejected", attrs...)
			default:
				InfoContext(ctx, "api request", attrs...)
			}
		})
	}
}

// responseRecorder captures the status and size of a response
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush keeps event streams working through the wrapper
func (rw *responseRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
