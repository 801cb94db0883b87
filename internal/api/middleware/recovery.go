package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DecoyKey marks requests served by decoy routes.
const DecoyKey = "decoy"

// Recovery logs panic information. When verbose is true it logs stacktraces
// and basic request metadata for debugging. Panics on requests marked as
// decoys are answered by fallback, so scanners never see a 500.
func Recovery(verbose bool, fallback gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				entry := GetRequestLogger(c)
				if verbose {
					entry.WithFields(logrus.Fields{
						"method":  c.Request.Method,
						"path":    SanitizePath(c.Request.URL.Path),
						"headers": SanitizeHeaders(c.Request.Header),
					}).Errorf("PANIC: %v\nStacktrace:\n%s", r, debug.Stack())
				} else {
					entry.Errorf("PANIC: %v", r)
				}
				if fallback != nil && c.GetBool(DecoyKey) {
					fallback(c)
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// MarkDecoy flags the request as decoy traffic for Recovery and RequestLogger.
func MarkDecoy() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DecoyKey, true)
		c.Next()
	}
}
