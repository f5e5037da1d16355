package httpmw

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentboard/agentboard/internal/common/errors"
)

// RateLimit is a process-local token bucket refilled at requestsPerSecond.
// A non-positive rate disables it.
func RateLimit(requestsPerSecond int) gin.HandlerFunc {
	if requestsPerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		tokens   = float64(requestsPerSecond)
		lastTime = time.Now()
	)

	return func(c *gin.Context) {
		mu.Lock()

		now := time.Now()
		tokens += now.Sub(lastTime).Seconds() * float64(requestsPerSecond)
		lastTime = now
		if tokens > float64(requestsPerSecond) {
			tokens = float64(requestsPerSecond)
		}

		if tokens < 1 {
			mu.Unlock()
			appErr := errors.TooManyRequests("too many requests, please try again later")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		tokens--
		mu.Unlock()

		c.Next()
	}
}
