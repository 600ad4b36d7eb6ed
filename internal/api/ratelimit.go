package api

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/listenup-ingest/internal/http/response"
	"github.com/listenupapp/listenup-ingest/internal/ratelimit"
)

// RateLimiter is the per-client limiter guarding submissions.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter allows count requests per interval for each client, with
// up to burst at once.
func NewRateLimiter(count int, interval time.Duration, burst int) *RateLimiter {
	return ratelimit.New(float64(count)/interval.Seconds(), burst, limiterIdleTTL)
}

// RateLimitMiddleware answers 429 with a Retry-After hint once a client
// exhausts its budget. Clients are keyed by IP.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			if limiter.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("submission rate limited", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", retryAfter(limiter))
			response.Error(w, http.StatusTooManyRequests, "Too many submissions, try again shortly", nil)
		})
	}
}

// retryAfter is the whole number of seconds until one token refills.
func retryAfter(limiter *RateLimiter) string {
	rps := limiter.Rate()
	if rps <= 0 || rps >= math.MaxInt32 {
		return "1"
	}
	return strconv.Itoa(max(1, int(math.Ceil(1/rps))))
}

// getClientIP prefers proxy headers: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
