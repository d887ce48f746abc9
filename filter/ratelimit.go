package filter

import (
	"net/netip"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// RateLimiter enforces a per-client-IP token bucket: capacity burstSize,
// refilled at requestsPerMinute/60 tokens per second. Grounded
// on the teacher's use of juju/ratelimit.NewBucketWithRate for its global
// connection rate limit; here one bucket is kept per source address
// instead of one shared bucket.
type RateLimiter struct {
	mu sync.Mutex
	buckets map[netip.Addr]*ratelimit.Bucket
	requestsPerMinute float64
	burstSize int64
	idleEvictAfter time.Duration
	lastSeen map[netip.Addr]time.Time
}

// NewRateLimiter builds a limiter allowing requestsPerMinute sustained
// connection attempts per client IP with burstSize immediate capacity.
func NewRateLimiter(requestsPerMinute float64, burstSize int64) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[netip.Addr]*ratelimit.Bucket),
		lastSeen: make(map[netip.Addr]time.Time),
		requestsPerMinute: requestsPerMinute,
		burstSize: burstSize,
		idleEvictAfter: 10 * time.Minute,
	}
}

// Allow reports whether addr may proceed now, consuming one token if so.
// A limiter with requestsPerMinute <= 0 is disabled and always allows.
func (r *RateLimiter) Allow(addr netip.Addr) bool {
	if r == nil || r.requestsPerMinute <= 0 {
		return true
	}

	addr = addr.Unmap()

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[addr]
	if !ok {
		bucket = ratelimit.NewBucketWithRate(r.requestsPerMinute/60, r.burstSize)
		r.buckets[addr] = bucket
	}
	r.lastSeen[addr] = time.Now()
	r.evictIdleLocked()

	return bucket.TakeAvailable(1) == 1
}

// evictIdleLocked drops buckets for addresses not seen recently, bounding
// memory for a long-running proxy with many distinct clients. Caller must
// hold r.mu.
func (r *RateLimiter) evictIdleLocked() {
	if len(r.buckets) < 4096 {
		return
	}
	cutoff := time.Now().Add(-r.idleEvictAfter)
	for addr, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			delete(r.buckets, addr)
			delete(r.lastSeen, addr)
		}
	}
}
