package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit allows limit requests per window per client IP, with a burst of
// limit. Idle entries are evicted after a few windows. limit <= 0 disables it.
func RateLimit(limit int, per time.Duration, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}
	every := rate.Every(per / time.Duration(limit))
	ttl := 3 * per

	var mu sync.Mutex
	entries := make(map[string]*limiterEntry)
	lastSweep := time.Now()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIPForRateLimit(r)
			now := time.Now()

			mu.Lock()
			if now.Sub(lastSweep) > ttl {
				for key, e := range entries {
					if now.Sub(e.lastSeen) > ttl {
						delete(entries, key)
					}
				}
				lastSweep = now
			}
			e, ok := entries[ip]
			if !ok {
				e = &limiterEntry{limiter: rate.NewLimiter(every, limit)}
				entries[ip] = e
			}
			e.lastSeen = now
			allowed := e.limiter.AllowN(now, 1)
			mu.Unlock()

			if !allowed {
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
