package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing perMinute requests per caller.
func NewRateLimiter(perMinute int, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler rejects callers that exceed their budget with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Use user ID if authenticated, otherwise the client IP
		key := ""
		if claims := GetUserFromContext(r.Context()); claims != nil {
			key = claims.UserID
		}
		if key == "" {
			key = clientIP(r)
		}

		if !rl.getLimiter(key).Allow() {
			logrus.WithFields(logrus.Fields{
				"key":  key,
				"path": r.URL.Path,
			}).Warn("Rate limit exceeded")
			writeMessage(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartCleanup periodically drops the limiter table once it grows large.
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.mu.Lock()
				if len(rl.limiters) > 10000 {
					rl.limiters = make(map[string]*rate.Limiter)
				}
				rl.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
