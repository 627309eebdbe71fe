package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	requestLogKey   = "request_logger"
)

// GinMiddleware logs one line per request and tags it with a request id.
// An incoming X-Request-ID header is reused, otherwise a new one is generated.
func (l *Logger) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLogger := l.WithRequestID(requestID)
		c.Set(requestIDKey, requestID)
		c.Set(requestLogKey, reqLogger)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		event := reqLogger.Logger.Info()
		switch {
		case status >= 500:
			event = reqLogger.Logger.Error()
		case status >= 400:
			event = reqLogger.Logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// FromGin returns the request-scoped logger set by GinMiddleware, or fallback.
func FromGin(c *gin.Context, fallback *Logger) *Logger {
	if v, ok := c.Get(requestLogKey); ok {
		if l, ok := v.(*Logger); ok {
			return l
		}
	}
	return fallback
}
