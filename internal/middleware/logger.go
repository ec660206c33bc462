package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/bookshelf/pkg/logger"
)

// Logger writes a concise structured access log for each request. Server errors
// attached to the context are logged at error level.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		log := logger.WithModule("http")
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			log.Error("request failed", append(fields, zap.String("error", errs.String()))...)
			return
		}
		log.Info("request", fields...)
	}
}
