package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware records anreicher_requests_total and
// anreicher_request_duration_seconds for every request, labelled with the
// chi route pattern ("unknown" outside a chi router or for unmatched
// paths). Responses sent as text/event-stream count towards
// anreicher_streaming_connections_active until the handler returns.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &recordingWriter{ResponseWriter: w}
		defer func() {
			if rw.streaming {
				StreamingConnections.Dec()
			}
		}()

		next.ServeHTTP(rw, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		RequestsTotal.WithLabelValues(r.Method, statusClass(rw.statusCode()), route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusClass maps 404 to "4xx" and so on.
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// recordingWriter captures the response status and notices SSE responses.
type recordingWriter struct {
	http.ResponseWriter
	status    int
	streaming bool
}

func (w *recordingWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
		if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			w.streaming = true
			StreamingConnections.Inc()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Flush keeps SSE responses flushing through the wrapper.
func (w *recordingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
