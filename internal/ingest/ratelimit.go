package ingest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterStore keeps one token bucket per client key. Buckets idle for
// longer than ttl are dropped on the next sweep.
type limiterStore struct {
	rate  rate.Limit
	burst int
	ttl   time.Duration

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterStore{
		rate:     limit,
		burst:    burst,
		ttl:      10 * time.Minute,
		limiters: make(map[string]*limiterEntry),
	}
}

func (s *limiterStore) allow(key string, now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, e := range s.limiters {
			if now.Sub(e.lastAccess) > s.ttl {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	entry, ok := s.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = entry
	}
	entry.lastAccess = now
	s.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
