// Package ratelimit provides the two distinct rate-limiting concerns
// the protocol needs: a per-session fixed-window message tracker
// (Tracker) enforced by the session handler, and a per-IP token-bucket
// admission limiter (AdmissionLimiter) enforced by the gateway before
// a socket is even upgraded.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AdmissionLimiter throttles incoming upgrade requests per source IP.
// Rate limiting is per-replica: each backend instance maintains its
// own counters. With N replicas behind a load balancer, the effective
// limit per IP is N * rate, which is acceptable burst protection for a
// single instance.
type AdmissionLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAdmissionLimiter creates a limiter that allows r requests per
// second with a maximum burst of b. Stale entries are cleaned up
// periodically.
func NewAdmissionLimiter(r rate.Limit, b int) *AdmissionLimiter {
	rl := &AdmissionLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		cleanup:  3 * time.Minute,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow checks whether a request from the given IP is allowed.
func (rl *AdmissionLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

func (rl *AdmissionLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > rl.cleanup {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// ClientIP extracts the client IP from a request, respecting
// X-Forwarded-For and X-Real-Ip when present (common behind load
// balancers), falling back to stripping the port off RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
