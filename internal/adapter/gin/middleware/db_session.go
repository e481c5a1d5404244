package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlite-user-service/pkg/database"
	"sqlite-user-service/pkg/logger"
)

// DBSession opens a database scope for the request and releases its
// connection once the handler chain returns, whatever the outcome.
// The connection itself is only checked out if a handler touches the store.
func DBSession(db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		reqLog := logger.WithContext(ctx, log)

		scope := database.NewScope(ctx, db, reqLog)
		defer func() {
			if err := scope.Close(); err != nil {
				reqLog.Warn("failed to release database connection", zap.Error(err))
			}
		}()

		c.Request = c.Request.WithContext(database.WithScope(ctx, scope))
		c.Next()
	}
}
