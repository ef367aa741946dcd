package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/law-makers/shopscrape/internal/ratelimit"
	"github.com/law-makers/shopscrape/internal/reqctx"
	"github.com/rs/zerolog/log"
)

// requestContext carries chi's request ID into the request context
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithRequestContext(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		e := log.Info()
		if status >= 500 {
			e = log.Error()
		} else if status >= 400 {
			e = log.Warn()
		}
		e.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// apiKeyAuth requires key in X-API-Key, X-RapidAPI-Key or a Bearer token.
// An empty key leaves the routes open.
func apiKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractAPIKey(r)
			if got == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"error":   "API key required",
					"message": "Please provide a valid API key in the X-API-Key header",
				})
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Success: false, Error: "invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey tries X-API-Key, then X-RapidAPI-Key, then Authorization: Bearer
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if key := r.Header.Get("X-RapidAPI-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// rateLimit applies a token bucket per client. The API key identifies the
// client when present, otherwise the remote IP.
func rateLimit(limiter *ratelimit.KeyedLimiter, message, retryAfter string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIdentity(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"success":    false,
					"error":      message,
					"retryAfter": retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIdentity(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
