package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter はクライアントIPごとにトークンバケットを持つ
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time

	// 掃除は sweepEvery に1回だけ
	sweepEvery time.Duration
	lastSweep  time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      10 * time.Minute,
		now:      time.Now,

		sweepEvery: time.Minute,
	}
}

func (l *IPRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
		l.lastSweep = now
	}
	return v.limiter
}

// sweep は ttl を過ぎたエントリを消す。l.mu を持って呼ぶこと
func (l *IPRateLimiter) sweep(now time.Time) {
	for k, e := range l.visitors {
		if now.Sub(e.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
}

// Allow は ip からのリクエストを1つ消費できるか
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.get(ip).AllowN(l.now(), 1)
}

// Middleware は上限を超えたリクエストに 429 を返す
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "RATE_LIMITED", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return NewIPRateLimiter(rps, burst).Middleware()
}
