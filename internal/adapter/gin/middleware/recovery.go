package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pkgerrors "sqlite-user-service/pkg/errors"
	"sqlite-user-service/pkg/logger"
)

// Recovery turns a panic in a later handler into a 500 response
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context(), log).Error("panic recovered",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(pkgerrors.HTTPStatus(pkgerrors.ErrInternal), gin.H{"error": pkgerrors.PublicMessage(pkgerrors.ErrInternal)})
			}
		}()

		c.Next()
	}
}
