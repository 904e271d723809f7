package middleware

import (
	"net/http"

	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit returns a middleware that limits request body size. Declared
// oversized bodies are refused up front; streamed ones fail on read with
// *http.MaxBytesError, which HandleValidationError reports as 413.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abortWithError(c, dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
