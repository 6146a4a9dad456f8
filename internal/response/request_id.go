package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is where the middleware stores the request ID in
// the Gin context.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an ID. An inbound
// X-Request-ID header is honored so callers can correlate retries;
// otherwise a fresh UUID is minted. The ID is echoed back on the
// response header and stamped into the envelope metadata.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
