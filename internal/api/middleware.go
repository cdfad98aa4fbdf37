package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/farmlink/farmlink/internal/wire"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ctxUserID is the gin context key holding the caller's identity.
const ctxUserID = "userID"

// requestLogger logs one line per request after it completes.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user", c.GetString(ctxUserID)),
		)
	}
}

// requireIdentity rejects requests without an X-User-ID header.
func requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(wire.HeaderUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, wire.ErrorResponse{Error: "missing " + wire.HeaderUserID + " header"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// rateLimiter allows each identity at most limit requests per sliding window.
// Identities idle for a full window are swept out.
type rateLimiter struct {
	mu        sync.Mutex
	users     map[string][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		users:  make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// allow records a request for key and reports whether it is within the limit.
func (rl *rateLimiter) allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweep(now)

	var kept []time.Time
	for _, t := range rl.users[key] {
		if now.Sub(t) < rl.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.users[key] = kept
		return false
	}
	rl.users[key] = append(kept, now)
	return true
}

// sweep drops identities whose newest request is outside the window, at
// most once per window. Callers hold mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, times := range rl.users {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= rl.window {
			delete(rl.users, key)
		}
	}
}

// middleware must run after requireIdentity.
func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.GetString(ctxUserID)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, wire.ErrorResponse{Error: "too many requests, try again shortly"})
			return
		}
		c.Next()
	}
}
