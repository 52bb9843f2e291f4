package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"relay-node/internal/log"
	"relay-node/internal/observability"
)

// RequestIDKey is the gin context key handlers use to publish the request id
// they propagated, so the access log can report it.
const RequestIDKey = "request_id"

// RequestLogger writes one structured line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		if rid := c.GetHeader("X-Request-ID"); rid != "" {
			c.Set(RequestIDKey, rid)
			c.Request = c.Request.WithContext(log.ContextWithRequestID(c.Request.Context(), rid))
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		event := logger.Info()
		if status := c.Writer.Status(); status >= 500 {
			event = logger.Error()
		}
		event.
			Str(log.FieldMethod, c.Request.Method).
			Str(log.FieldPath, route).
			Int(log.FieldStatus, c.Writer.Status()).
			Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
			Str(log.FieldRequestID, c.GetString(RequestIDKey)).
			Str("client_ip", observability.ClientIP(c.Request)).
			Msg("request handled")
	}
}
