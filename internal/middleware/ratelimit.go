package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	sweepInterval = 3 * time.Minute
	visitorIdle   = 5 * time.Minute
)

type visitor struct {
	bucket *rate.Limiter
	seen   time.Time
}

// RateLimiter is a token bucket per client IP, used on the credential and upload
// routes. Idle buckets are swept in the background until Stop.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor

	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows rps requests per second per IP, with bursts up to burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = now
	return v.bucket
}

func (rl *RateLimiter) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case now := <-t.C:
			rl.sweep(now, visitorIdle)
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time, idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.seen) > idle {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Middleware answers 429 with a Retry-After of the whole seconds until the next
// token is available.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		res := rl.bucketFor(c.ClientIP(), now).ReserveN(now, 1)
		wait := res.DelayFrom(now)
		if !res.OK() || wait > 0 {
			res.CancelAt(now)
			retry := 1
			if res.OK() {
				retry = int(math.Ceil(wait.Seconds()))
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}
