package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-assistant/backend/internal/apperrors"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Abort records err on the context and stops the handler chain. ErrorHandler writes the reply.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler turns the last error recorded on the context into a JSON reply and
// recovers panics as 500s. AppErrors keep their status and message; anything else
// is logged and hidden behind a generic infrastructure error.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", r,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				if !c.Writer.Written() {
					writeError(c, apperrors.ErrInfrastructure)
				}
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.ErrInfrastructure.WithCause(err)
		}

		if appErr.HTTPCode() >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"code", appErr.ErrorCode(),
				"error", err,
			)
		} else {
			logger.DebugContext(c.Request.Context(), "request rejected",
				"path", c.Request.URL.Path,
				"code", appErr.ErrorCode(),
				"error", err,
			)
		}
		writeError(c, appErr)
	}
}

func writeError(c *gin.Context, appErr *apperrors.AppError) {
	c.JSON(appErr.HTTPCode(), ErrorResponse{Detail: appErr.Message(), Code: appErr.ErrorCode()})
}
