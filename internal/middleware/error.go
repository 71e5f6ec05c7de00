package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
)

// ErrorHandler renders the last error set on the Gin context as
// {"error":{"code","message"}}. Internal causes are logged with the request
// id and never sent to the client. Invariant violations are always logged
// since they mean stored state disagrees with its sources.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log := logger.For("http")

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error",
				"error", err.Error(),
				"request_id", RequestID(c),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil || appErr.Kind == apperrors.KindInvariantViolation {
			fields := []interface{}{
				"code", appErr.Code,
				"kind", appErr.Kind,
				"message", appErr.Message,
				"request_id", RequestID(c),
				"path", c.Request.URL.Path,
			}
			if appErr.Internal != nil {
				fields = append(fields, "internal", appErr.Internal.Error())
			}
			log.Errorw("app error", fields...)
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
