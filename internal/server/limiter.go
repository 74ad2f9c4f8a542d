package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateResult is the outcome of one limiter check.
type rateResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// limiter keeps one token bucket per client key.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	window  time.Duration
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLimiter allows requests per window with the given burst.
func newLimiter(requests int, window time.Duration, burst int) *limiter {
	if burst < 1 {
		burst = 1
	}
	l := &limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		window:  window,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *limiter) Allow(key string) rateResult {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := rateResult{Limit: int(float64(l.rate) * l.window.Seconds())}
	rsv := b.limiter.ReserveN(now, 1)
	res.Allowed = rsv.OK() && rsv.DelayFrom(now) == 0
	if !res.Allowed {
		if rsv.OK() {
			rsv.CancelAt(now)
		}
		res.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.rate)), time.Second)
	}
	res.Remaining = max(int(b.limiter.TokensAt(now)), 0)
	return res
}

func (l *limiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now().Add(-10 * time.Minute))
		case <-l.stop:
			return
		}
	}
}

// cleanup drops idle buckets that have refilled.
func (l *limiter) cleanup(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(before) && b.limiter.Tokens() >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func writeRateHeaders(w http.ResponseWriter, res rateResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
	}
}
