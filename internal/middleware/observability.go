package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"groupcast/internal/metrics"
	"groupcast/internal/tracing"
)

// responseWrapper captures the status code and bytes written for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// ObservabilityMiddleware adds request tracing, metrics, and structured logging
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = tracing.GenerateRequestID()
			}

			ctx := tracing.WithRequestID(r.Context(), requestID)
			ctx = tracing.WithStartTime(ctx, start)

			spanCtx, span := tracing.StartSpan(ctx, "http.request",
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
				attribute.String("request.id", requestID),
			)
			defer span.End()

			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(wrapped, r.WithContext(spanCtx))

			duration := time.Since(start)
			labels := map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": http.StatusText(wrapped.statusCode),
			}
			metrics.IncrementCounter("http_requests_total", labels, "Total HTTP requests")
			metrics.RecordTimer("http_request_duration", duration, labels, "HTTP request duration")

			span.SetAttributes(
				attribute.Int("http.status_code", wrapped.statusCode),
				attribute.Int("http.response_size", wrapped.size),
			)
			if wrapped.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			}

			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"size":       wrapped.size,
				"duration":   duration.String(),
				"client_ip":  clientIP(r),
			})

			switch {
			case wrapped.statusCode >= 500:
				entry.Error("HTTP request failed")
			case wrapped.statusCode >= 400:
				entry.Warn("HTTP request client error")
			default:
				entry.Debug("HTTP request completed")
			}
		})
	}
}

// clientIP extracts the originating client address, preferring proxy headers
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
