package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/pkg/logger"
	"github.com/noah-isme/syllabus-portal/pkg/middleware/requestid"
)

// Audit logs state-changing requests that succeeded, such as submissions
// and review actions.
func Audit(l *zap.Logger, action, resource string) gin.HandlerFunc {
	if l == nil {
		l = zap.NewNop()
	}
	audit := l.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("resource_id", c.Param("id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		fields = append(fields, logger.SessionFields(Session(c))...)
		audit.Info("audit", fields...)
	}
}
