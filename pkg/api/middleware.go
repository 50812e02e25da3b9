package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"

	"github.com/forgehost/lfs-gateway/pkg/log"
)

type contextKey string

const requestIDKey contextKey = "request-id"

// RequestIDMiddleware stamps every request with a UUIDv4 correlation ID,
// reused in access logs and in error response bodies.
func RequestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.NewV4()

			reqID := ""
			if err == nil {
				reqID = id.String()
			}

			w.Header().Set("X-Request-Id", reqID)

			ctx := context.WithValue(r.Context(), requestIDKey, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID extracts the correlation ID RequestIDMiddleware attached to
// r's context, or "" if the middleware never ran.
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)

	return id
}

type statusWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.length += n

	return n, err
}

// AccessLogMiddleware writes one structured log line per request,
// redacting the Authorization header's embedded password.
func AccessLogMiddleware(logger log.Logger) mux.MiddlewareFunc {
	httpLog := logger.With().Str("module", "http").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			stwr := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(stwr, r)

			latency := time.Since(start)

			httpLog.Info().
				Str("requestId", RequestID(r)).
				Str("clientIP", r.RemoteAddr).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("statusCode", stwr.status).
				Int("bodySize", stwr.length).
				Dur("latency", latency).
				Str("user", basicAuthUsername(r)).
				Msg("http request")
		})
	}
}

// AuditLogMiddleware writes one audit record per state-changing request
// that succeeded, for compliance review separate from the operational
// access log.
func AuditLogMiddleware(audit *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stwr := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(stwr, r)

			isMutation := r.Method == http.MethodPost || r.Method == http.MethodPut
			isSuccess := stwr.status >= 200 && stwr.status < 300

			if isMutation && isSuccess {
				audit.Info().
					Str("requestId", RequestID(r)).
					Str("clientIP", r.RemoteAddr).
					Str("subject", basicAuthUsername(r)).
					Str("action", r.Method).
					Str("object", r.URL.Path).
					Msg("audit")
			}
		})
	}
}

// basicAuthUsername extracts the username out of a Basic Authorization
// header without failing the request if it is absent or malformed.
func basicAuthUsername(r *http.Request) string {
	user, _, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	return user
}

// repoFromVars joins the "repo" path segments mux captured with a
// wildcard matcher back into a slash-separated repository path.
func repoFromVars(r *http.Request) string {
	vars := mux.Vars(r)

	return strings.Trim(vars["repo"], "/")
}
