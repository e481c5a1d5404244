package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sqlite-user-service/api"
	"sqlite-user-service/internal/adapter/gin/handler"
	"sqlite-user-service/internal/adapter/gin/middleware"
	"sqlite-user-service/pkg/metrics"
)

// Options carries the optional pieces of the HTTP surface
type Options struct {
	ServiceName    string
	DB             *gorm.DB                // Pool handed to per-request scopes
	Metrics        *metrics.HTTP           // Nil disables /metrics and request metrics
	RateLimiter    *middleware.RateLimiter // Nil disables rate limiting
	SwaggerEnabled bool
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(userHandler *handler.UserHandler, opts Options, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.HandleMethodNotAllowed = false

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics(opts.Metrics))
	router.Use(middleware.Recovery(log))
	router.Use(opts.RateLimiter.Handler())
	router.Use(middleware.DBSession(opts.DB, log))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": opts.ServiceName,
		})
	})

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	if opts.SwaggerEnabled {
		router.GET("/openapi.json", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json; charset=utf-8", api.OpenAPI)
		})
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))
	}

	users := router.Group("/users")
	{
		users.GET("", userHandler.ListUsers)
		users.HEAD("", userHandler.ListUsers)
		users.POST("", userHandler.CreateUser)
		users.GET("/:id", userHandler.GetUser)
		users.HEAD("/:id", userHandler.GetUser)
	}

	router.NoRoute(handler.NotFound)

	return router
}
