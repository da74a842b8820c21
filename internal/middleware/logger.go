package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if userID, ok := UserID(c); ok {
			attrs = append(attrs, "user_id", userID)
		}

		switch {
		case status >= 500:
			logger.ErrorContext(c.Request.Context(), "request", attrs...)
		case status >= 400:
			logger.WarnContext(c.Request.Context(), "request", attrs...)
		default:
			logger.InfoContext(c.Request.Context(), "request", attrs...)
		}
	}
}
