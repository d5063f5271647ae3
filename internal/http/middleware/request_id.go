package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"basegraph.app/pulse/common/logger"
)

const RequestIDHeader = "X-Request-Id"

// RequestID propagates or assigns a request id and adds it to the log fields
// of the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			RequestID: &requestID,
			Component: "pulse.http",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
