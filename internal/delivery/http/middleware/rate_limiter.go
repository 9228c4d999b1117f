package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type windowEntry struct {
	count     int
	timestamp time.Time
}

// RateLimiter returns a middleware that enforces per-IP limits over a
// one-minute window. Stale entries are swept until ctx is done.
func RateLimiter(ctx context.Context, maxRequests int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*windowEntry)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			mu.Lock()
			now := time.Now()
			for ip, entry := range clients {
				if now.Sub(entry.timestamp) > 2*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()

		entry, exists := clients[ip]
		now := time.Now()

		if !exists || now.Sub(entry.timestamp) > time.Minute {
			clients[ip] = &windowEntry{count: 1, timestamp: now}
			mu.Unlock()
			c.Next()
			return
		}

		if entry.count >= maxRequests {
			retryAfter := time.Minute - now.Sub(entry.timestamp)
			mu.Unlock()
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
			})
			return
		}

		entry.count++
		mu.Unlock()
		c.Next()
	}
}
