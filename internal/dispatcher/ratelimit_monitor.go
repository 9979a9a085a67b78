package dispatcher

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor remembers the platform's rate limit headers per route
// and guild so requests known to fail are not sent.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
	now     func() time.Time
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
		now:     time.Now,
	}
}

func (rlm *RateLimitMonitor) CanExecute(route, guildID string) bool {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[rlm.getKey(route, guildID)]
	rlm.mu.RUnlock()

	if !exists {
		return true
	}
	if rlm.now().After(bucket.ResetAt) {
		return true
	}
	return bucket.Remaining > 0
}

func (rlm *RateLimitMonitor) UpdateFromFastHTTPResponse(resp *fasthttp.Response, route, guildID string) {
	remaining := string(resp.Header.Peek("X-RateLimit-Remaining"))
	if remaining == "" {
		return
	}

	bucket := &RateLimitBucket{}
	bucket.Remaining, _ = strconv.Atoi(remaining)
	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		bucket.Limit, _ = strconv.Atoi(limit)
	}
	if after := string(resp.Header.Peek("X-RateLimit-Reset-After")); after != "" {
		if secs, err := strconv.ParseFloat(after, 64); err == nil {
			bucket.ResetAt = rlm.now().Add(time.Duration(secs * float64(time.Second)))
		}
	} else if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		if secs, err := strconv.ParseFloat(reset, 64); err == nil {
			bucket.ResetAt = time.Unix(0, int64(secs*float64(time.Second)))
		}
	}

	rlm.mu.Lock()
	rlm.buckets[rlm.getKey(route, guildID)] = bucket
	rlm.mu.Unlock()
}

func (rlm *RateLimitMonitor) getKey(route, guildID string) string {
	return route + ":" + guildID
}
