package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/logger"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// RequestLogger emits one structured line per request, tagged with the
// route template and, once auth has run, the caller's id and role.
// Health probes log at debug.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if rid := c.GetString(logger.RequestIDKey); rid != "" {
			fields = append(fields, zap.String(logger.RequestIDKey, rid))
		}
		if id, err := GetIdentity(c); err == nil {
			fields = append(fields, zap.String("user_id", id.UserID.String()), zap.String("role", string(id.Role)))
		}
		if key := c.GetHeader(idempotencyHeader); key != "" {
			fields = append(fields, zap.String("idempotency_key", key))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("http_request", fields...)
		case status >= 400:
			log.Warn("http_request", fields...)
		case c.Request.URL.Path == "/health":
			log.Debug("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
