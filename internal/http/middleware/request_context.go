package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitRequestBody caps request bodies at maxBytes. 0 disables the cap.
func LimitRequestBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
