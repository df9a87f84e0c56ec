package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
)

const RequestIDKey = "request_id"

func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logFields := []interface{}{
			"status", statusCode,
			"latency", latency,
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		}

		if errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		ctx := c.Request.Context()
		if statusCode >= 500 {
			log.ErrorwCtx(ctx, "HTTP Request", logFields...)
		} else {
			log.InfowCtx(ctx, "HTTP Request", logFields...)
		}
	}
}

func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := errors.RecoverPanic(recovered)
		log.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(errors.ErrInternal))
	})
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent,
// and carries it as the trace id in the request context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(constants.HeaderRequestID, requestID)

		if logging.GetTraceID(c.Request.Context()) == "" {
			c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), requestID))
		}
		c.Next()
	}
}
