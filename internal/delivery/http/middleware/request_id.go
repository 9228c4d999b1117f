package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	loggerKey       = "request_logger"
)

// Caller ids that do not match are replaced with a generated one.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestID tags every request with an id, echoed in X-Request-ID, and
// stores a child of logger carrying that id for LoggerFrom.
func RequestID(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(requestID) {
			id, _ := uuid.NewV7()
			requestID = id.String()
		}

		c.Set(requestIDKey, requestID)
		c.Set(loggerKey, logger.With(zap.String("request_id", requestID)))
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger set by RequestID, or fallback.
func LoggerFrom(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return fallback
}
