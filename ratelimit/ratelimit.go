package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Limiter is a fixed-window counter keyed by client IP, used to absorb
// websocket reconnect storms.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	per     time.Duration
}

type window struct {
	start time.Time
	used  int
}

// New allows max requests per IP per window.
func New(max int, per time.Duration) *Limiter {
	return &Limiter{windows: map[string]*window{}, max: max, per: per}
}

// Allow reports whether one more request from ip fits in the current window.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[ip]
	if w == nil || time.Since(w.start) > l.per {
		w = &window{start: time.Now()}
		l.windows[ip] = w
	}
	if w.used >= l.max {
		return false
	}
	w.used++
	return true
}

// Middleware rejects over-limit requests before they reach the next handler.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		if !l.Allow(ip) {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
