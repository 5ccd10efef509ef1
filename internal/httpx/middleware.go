package httpx

import (
	"compress/gzip"
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader is the header name for request ID.
const RequestIDHeader = "X-Request-ID"

// contextKey is the type for context keys to avoid collisions.
type contextKey string

const requestIDContextKey contextKey = "request_id"

// Middleware represents a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies multiple middleware in order.
// Example: Chain(middleware1, middleware2, middleware3)(handler)
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// RequestID attaches a unique request ID to each request, honoring an
// incoming X-Request-ID header when present. The ID is stored on the
// request context and echoed as a response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context. Useful for tests.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// Logger logs each request with structured logging.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			duration := time.Since(start)

			logger.InfoContext(r.Context(), "http request",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"request_id", GetRequestID(r.Context()),
						"error", err,
						"stack", string(debug.Stack()),
					)

					WriteError(w, http.StatusInternalServerError,
						"internal_error",
						"an unexpected error occurred",
						nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Gzip compresses response bodies when the client advertises gzip support.
// Responses that already carry a Content-Encoding (pre-compressed static
// assets, for example) pass through untouched.
func Gzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Accept-Encoding")

		grw := &gzipResponseWriter{ResponseWriter: w}
		defer grw.close()

		next.ServeHTTP(grw, r)
	})
}

// gzipResponseWriter routes body writes through a gzip.Writer. The choice
// between compressing and passing through is deferred until the headers are
// committed, because only then is an inner handler's own Content-Encoding
// visible.
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	passthrough bool
	wroteHeader bool
}

func (grw *gzipResponseWriter) WriteHeader(code int) {
	if grw.wroteHeader {
		grw.ResponseWriter.WriteHeader(code)
		return
	}
	grw.wroteHeader = true

	if grw.Header().Get("Content-Encoding") != "" {
		// The body is already encoded; a second layer would corrupt it.
		grw.passthrough = true
	} else {
		grw.Header().Set("Content-Encoding", "gzip")
		// The compressed length is unknown until Close.
		grw.Header().Del("Content-Length")
		grw.gz = gzip.NewWriter(grw.ResponseWriter)
	}

	grw.ResponseWriter.WriteHeader(code)
}

func (grw *gzipResponseWriter) Write(p []byte) (int, error) {
	if !grw.wroteHeader {
		grw.WriteHeader(http.StatusOK)
	}
	if grw.passthrough {
		return grw.ResponseWriter.Write(p)
	}
	return grw.gz.Write(p)
}

// Flush forwards to the underlying http.Flusher so streaming handlers keep
// working behind the middleware.
func (grw *gzipResponseWriter) Flush() {
	if grw.gz != nil {
		_ = grw.gz.Flush()
	}
	if f, ok := grw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (grw *gzipResponseWriter) close() {
	if grw.gz != nil {
		_ = grw.gz.Close()
	}
}

// JSONErrors rewrites plain-text error responses into the JSON error
// envelope, so routes the mux rejects itself (unknown path, wrong method)
// answer in the same shape as every handler. Responses that already are
// JSON pass through untouched.
func JSONErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&jsonErrorWriter{ResponseWriter: w}, r)
	})
}

type jsonErrorWriter struct {
	http.ResponseWriter
	wroteHeader bool
	intercepted bool
}

func (jw *jsonErrorWriter) WriteHeader(code int) {
	if jw.wroteHeader {
		jw.ResponseWriter.WriteHeader(code)
		return
	}
	jw.wroteHeader = true

	if code >= 400 && !strings.HasPrefix(jw.Header().Get("Content-Type"), "application/json") {
		jw.intercepted = true
		jw.Header().Del("Content-Length")
		WriteError(jw.ResponseWriter, code, statusCodeToken(code), http.StatusText(code), nil)
		return
	}

	jw.ResponseWriter.WriteHeader(code)
}

func (jw *jsonErrorWriter) Write(p []byte) (int, error) {
	if !jw.wroteHeader {
		jw.WriteHeader(http.StatusOK)
	}
	if jw.intercepted {
		// The original body was replaced with the envelope; swallow it.
		return len(p), nil
	}
	return jw.ResponseWriter.Write(p)
}

func statusCodeToken(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "error"
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
