package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestIDContextKey matches the gin context key used by the RequestID
// middleware.
const requestIDContextKey = "X-Request-ID"

const loggerContextKey = "logger"

// GinMiddleware returns a gin middleware that logs HTTP requests. The
// request-scoped logger carries the request ID and tenant ID so handler
// logs correlate with the access log line.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		if tenantID := c.Param("tenantId"); tenantID != "" {
			reqLogger = reqLogger.With(zap.String("tenant_id", tenantID))
		}

		c.Set(loggerContextKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// Recovery returns a gin middleware that recovers from panics and logs them
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", c.GetString(requestIDContextKey)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from gin context
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get(loggerContextKey); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
