/*
Package limiter provides rate limiting functionality based on client IP addresses.

It uses the token bucket algorithm (rate.Limiter) to control the request frequency
for each client IP and includes a cleanup goroutine that periodically removes
inactive limiters to keep memory bounded.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"veilchat/internal/pkg/errs"
	"veilchat/internal/pkg/logx"
	"veilchat/internal/pkg/resp"

	"golang.org/x/time/rate"
)

// cleanupInterval is how often the background sweep of idle limiters runs.
const cleanupInterval = 3 * time.Minute

// IPRateLimiter implements a per-IP request rate limiter.
type IPRateLimiter struct {
	// mu protects concurrent access to the limits map.
	mu *sync.RWMutex

	// limits maps a client IP address to its *rate.Limiter instance.
	limits map[string]*rate.Limiter

	// r is the sustained rate (events per second) allowed per IP.
	r rate.Limit

	// b is the burst size (token bucket capacity) allowed per IP.
	b int
}

// NewIPRateLimiter creates a new IPRateLimiter with rate r and burst b,
// and starts the background cleanup goroutine.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		mu:     &sync.RWMutex{},
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.cleanUpVisitors()

	return i
}

// GetLimiter retrieves the rate limiter for the given IP address, creating one
// if absent. Double-checked locking keeps creation concurrent-safe without
// serializing the read path.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// cleanUpVisitors periodically removes limiters whose token bucket is full,
// meaning the IP has been idle long enough to forget.
func (i *IPRateLimiter) cleanUpVisitors() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		count := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				count++
			}
		}
		remaining := len(i.limits)
		i.mu.Unlock()

		logx.Debug("Rate limiter cleanup finished.", "removed", count, "active", remaining)
	}
}

// Middleware returns an HTTP middleware that enforces the rate limit.
// Requests over the limit receive a 429 Too Many Requests response.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		limiter := i.GetLimiter(ip)

		if !limiter.Allow() {
			rateLimitErr := errs.NewError(errs.ErrRateLimitExceeded)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		next.ServeHTTP(w, r)
	})
}
