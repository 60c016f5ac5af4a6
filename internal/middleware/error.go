package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "cuadra/internal/errors"
	"cuadra/internal/logger"
)

// ErrorHandler returns a Gin middleware that renders the last error attached
// to the context with c.Error, unless a response has already been written.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		RenderError(c, c.Errors.Last().Err)
	}
}

// RenderError writes err as a JSON error body. AppErrors keep their status,
// code, message and field; anything else is logged and reported as a generic
// internal error so details never leak.
func RenderError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", RequestID(c),
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
			"request_id", RequestID(c),
		)
	}

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if id := RequestID(c); id != "" {
		body["request_id"] = id
	}
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{"error": body})
}
