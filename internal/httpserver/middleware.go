package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wisbric/blacklistguard/internal/config"
	"github.com/wisbric/blacklistguard/internal/telemetry"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestID injects a unique request ID into each request's context and response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs every request with method, path, status, and duration.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

// Metrics records request duration, counts, and in-flight gauges to Prometheus.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		routePath := r.URL.Path
		telemetry.HTTPRequestsInProgress.WithLabelValues(r.Method, routePath).Inc()
		defer telemetry.HTTPRequestsInProgress.WithLabelValues(r.Method, routePath).Dec()

		next.ServeHTTP(sw, r)

		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				routePath = pattern
			}
		}

		status := strconv.Itoa(sw.status)
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, routePath, status).Observe(time.Since(start).Seconds())
		telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, status).Inc()
		if sw.status >= 400 {
			errType := "client_error"
			if sw.status >= 500 {
				errType = "server_error"
			}
			telemetry.HTTPErrorsTotal.WithLabelValues(r.Method, routePath, errType, status).Inc()
		}
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// RequireOperatorKey enforces the shared-secret control-plane auth described
// in §9: requests must carry X-API-Key matching the configured operator key.
// Used on mutating control endpoints (force-collection, credential updates,
// source enable/disable) and on the agent ingest endpoint.
func RequireOperatorKey(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.OperatorAPIKey == "" {
				RespondError(w, r, http.StatusServiceUnavailable, "unauthorized", "operator API key is not configured")
				return
			}
			key := r.Header.Get("X-API-Key")
			if key == "" || key != cfg.OperatorAPIKey {
				RespondError(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
