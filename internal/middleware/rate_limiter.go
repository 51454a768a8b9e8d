package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements rate limiting for API endpoints
type RateLimiter struct {
	ipLimiters      map[string]*rate.Limiter
	authLimiters    map[string]*rate.Limiter
	ipMutex         sync.Mutex
	authMutex       sync.Mutex
	ipLimiterRate   rate.Limit
	authLimiterRate rate.Limit
	ipBurst         int
	authBurst       int
	cleanupTicker   *time.Ticker
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipRequestsPerSecond, authRequestsPerMinute float64, ipBurst, authBurst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:      make(map[string]*rate.Limiter),
		authLimiters:    make(map[string]*rate.Limiter),
		ipLimiterRate:   rate.Limit(ipRequestsPerSecond),
		authLimiterRate: rate.Limit(authRequestsPerMinute / 60),
		ipBurst:         ipBurst,
		authBurst:       authBurst,
		cleanupTicker:   time.NewTicker(5 * time.Minute),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup periodically resets the limiter maps to prevent unbounded growth
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.ipMutex.Lock()
		rl.ipLimiters = make(map[string]*rate.Limiter)
		rl.ipMutex.Unlock()

		rl.authMutex.Lock()
		rl.authLimiters = make(map[string]*rate.Limiter)
		rl.authMutex.Unlock()
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.Lock()
	defer rl.ipMutex.Unlock()

	limiter, exists := rl.ipLimiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.ipLimiterRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

func (rl *RateLimiter) getAuthLimiter(key string) *rate.Limiter {
	rl.authMutex.Lock()
	defer rl.authMutex.Unlock()

	limiter, exists := rl.authLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.authLimiterRate, rl.authBurst)
		rl.authLimiters[key] = limiter
	}
	return limiter
}

// IPRateLimiterMiddleware limits requests based on IP address
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := rl.getIPLimiter(ip)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthRateLimiterMiddleware applies a tighter per-IP budget to login and OTP
// endpoints, where each request is a guess against an account.
func (rl *RateLimiter) AuthRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		ipLimiter := rl.getIPLimiter(ip)
		if !ipLimiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		authLimiter := rl.getAuthLimiter(ip)
		if !authLimiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many authentication attempts, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
