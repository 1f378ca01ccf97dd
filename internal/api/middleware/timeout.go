package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_dbproxy/internal/logger"
)

// TimeoutConfig holds the default request deadline and per-route overrides
// keyed by gin route pattern, e.g. "/persist". A zero or negative duration
// disables the deadline.
type TimeoutConfig struct {
	Default time.Duration
	Routes  map[string]time.Duration
}

func (tc TimeoutConfig) forRoute(fullPath string) time.Duration {
	if d, ok := tc.Routes[fullPath]; ok {
		return d
	}
	return tc.Default
}

// RequestTimeout sets a per-request context deadline.
// It does NOT forcibly kill the handler; downstream code must honor ctx.Done().
func RequestTimeout(tc TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := tc.forRoute(c.FullPath())
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		// A written response can no longer be replaced.
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}
		logger.WithComponent("http").Warnf("request timeout after %v: %s %s", d, c.Request.Method, c.FullPath())
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
			"error":   "request timeout",
			"timeout": d.String(),
		})
	}
}
