package api

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/smartcover/heron/internal/domain"
)

// RateLimitMiddleware limits requests per client IP using the cache's
// fixed-window counters. With a Redis-backed cache the window is shared
// across nodes. Limiting fails open: a counter error lets the request
// through.
func RateLimitMiddleware(cache domain.Cache, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cache == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			count, err := cache.IncrementCounter(r.Context(), "ratelimit:"+ip, window)
			if err != nil {
				slog.Warn("rate limit counter failed",
					"client_ip", ip,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				slog.Warn("rate limit exceeded",
					"client_ip", ip,
					"count", count,
					"limit", limit,
				)
				w.Header().Set("Retry-After", window.String())
				writeFailure(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's remote IP. RealIP middleware runs
// earlier in the chain, so RemoteAddr already reflects forwarded
// headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
