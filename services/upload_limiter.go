package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UploadLimiter is a process-local token bucket per IP for lab uploads.
// State is lost on restart and is not shared between replicas.
type UploadLimiter struct {
	perHour  int
	limiters map[string]*uploadEntry
	mu       sync.Mutex
	now      func() time.Time
}

type uploadEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUploadLimiter(perHour int) *UploadLimiter {
	return &UploadLimiter{
		perHour:  perHour,
		limiters: make(map[string]*uploadEntry),
		now:      time.Now,
	}
}

// Allow consumes one token for ip. A non-positive rate disables the limit.
func (u *UploadLimiter) Allow(ip string) bool {
	if u == nil || u.perHour <= 0 {
		return true
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	entry, ok := u.limiters[ip]
	if !ok {
		entry = &uploadEntry{
			limiter: rate.NewLimiter(rate.Every(time.Hour/time.Duration(u.perHour)), u.perHour),
		}
		u.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than maxIdle.
func (u *UploadLimiter) Cleanup(maxIdle time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	cutoff := u.now().Add(-maxIdle)
	for ip, entry := range u.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(u.limiters, ip)
		}
	}
}
