// Package requestid tags every request with an id so a single evaluation
// write can be followed through the request log.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header carries the id in and out of the service, so ids supplied by a
	// gateway or test harness correlate across hops.
	Header = "X-Request-ID"

	contextKey = "request_id"
)

// Middleware assigns a request id, reusing one the caller already sent.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the current request's id, or "" outside the middleware.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
