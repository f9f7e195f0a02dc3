// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter provides rate limiting using a sliding window algorithm.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	cleanup  time.Duration // how often to clean old entries
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a new rate limiter.
// limit: maximum requests allowed per duration
// duration: the time window for counting requests
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		cleanup:  duration * 2, // cleanup entries older than 2x duration
	}
	go l.cleanupLoop()
	return l
}

// Allow checks if a request from the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	// If no window exists or window expired, create new one
	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{
			count:     1,
			expiresAt: now.Add(l.duration),
		}
		return true
	}

	// Window still active - check limit
	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Remaining returns how many requests are left for this key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		return l.limit
	}

	remaining := l.limit - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the rate limit for a specific key.
// Useful after successful authentication to reward good behavior.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// cleanupLoop periodically removes expired entries to prevent memory leaks.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for key, w := range l.windows {
			if now.After(w.expiresAt) {
				delete(l.windows, key)
			}
		}
		l.mu.Unlock()
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list, first is client)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr (strip port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

var (
	// ErrTooManyFromIP means the client IP exhausted its attempts.
	ErrTooManyFromIP = errors.New("too many login attempts; please wait a minute before trying again")
	// ErrTooManyForAccount means the email exhausted its attempts.
	ErrTooManyForAccount = errors.New("too many login attempts for this account; please wait a few minutes")
)

// LoginLimiter rate-limits sign-in and registration attempts both per client
// IP and per email address.
type LoginLimiter struct {
	ipLimiter    *Limiter
	emailLimiter *Limiter
}

// NewLoginLimiter creates a limiter allowing perIP attempts per window from
// one IP, and half as many (at least 1) per email over five windows.
func NewLoginLimiter(perIP int, window time.Duration) *LoginLimiter {
	if perIP <= 0 {
		perIP = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	perEmail := perIP / 2
	if perEmail < 1 {
		perEmail = 1
	}
	return &LoginLimiter{
		ipLimiter:    New(perIP, window),
		emailLimiter: New(perEmail, 5*window),
	}
}

// Check reports whether an attempt may proceed. It returns ErrTooManyFromIP
// or ErrTooManyForAccount when blocked.
func (ll *LoginLimiter) Check(r *http.Request, email string) error {
	if !ll.ipLimiter.Allow(ClientIP(r)) {
		return ErrTooManyFromIP
	}
	if email != "" {
		if !ll.emailLimiter.Allow(emailKey(email)) {
			return ErrTooManyForAccount
		}
	}
	return nil
}

// ResetEmail clears the rate limit for a specific email after successful login.
func (ll *LoginLimiter) ResetEmail(email string) {
	if email != "" {
		ll.emailLimiter.Reset(emailKey(email))
	}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
