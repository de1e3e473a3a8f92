// Package validation provides input validation middleware for the ScamCheck API.
package validation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB).
const MaxRequestSize = 1 << 20

// MaxInputLength caps addresses and links accepted by check endpoints.
// The longest supported address shapes are well under this.
const MaxInputLength = 512

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeInput trims whitespace, strips null bytes and enforces the
// input length cap.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	if len(s) > MaxInputLength {
		s = s[:MaxInputLength]
	}
	return s
}
