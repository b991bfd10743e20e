package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// logFieldsKey identifies request-scoped logging fields.
type logFieldsKey struct{}

type logFields struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *logFields) set(key, value string) {
	f.mu.Lock()
	f.values[key] = value
	f.mu.Unlock()
}

func (f *logFields) attrs() []slog.Attr {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.String(k, f.values[k]))
	}
	return out
}

// LoggingMiddleware logs HTTP requests with structured logging.
// It logs the start and completion of each request, including method, path,
// status code, duration, and any custom fields added via AddLogField.
// Completions with a 5xx status log at warn level.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := &logFields{values: make(map[string]string)}
			ctxWithFields := context.WithValue(r.Context(), logFieldsKey{}, fields)

			wrapped := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			requestID := GetRequestID(r.Context())

			logger.Debug("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(wrapped, r.WithContext(ctxWithFields))

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
			}
			attrs = append(attrs, fields.attrs()...)

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(ctxWithFields, level, "request completed", attrs...)
		})
	}
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *loggingResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *loggingResponseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// AddLogField attaches a key/value to the request-scoped log fields so
// LoggingMiddleware can emit it. No-op if the middleware isn't present.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		fields.set(key, value)
	}
}

// AddError attaches an error message to the request-scoped log fields. No-op
// if the middleware isn't present or err is nil.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}
