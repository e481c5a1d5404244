package server

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"sqlite-user-service/cmd/api/di"
	ginrouter "sqlite-user-service/internal/adapter/gin/router"
)

// NewHandler builds the gin router and wraps it in a CORS layer that
// accepts requests from any origin.
func NewHandler(c *di.Container) http.Handler {
	router := ginrouter.SetupRouter(c.GinHandler, ginrouter.Options{
		ServiceName:    c.Config.Logger.ServiceName,
		DB:             c.DB,
		Metrics:        c.Metrics,
		RateLimiter:    c.RateLimiter,
		SwaggerEnabled: c.Config.Features.SwaggerEnabled,
	}, c.Logger)

	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})(router)
}

// SetupGinServer creates and configures the HTTP server for the REST API
func SetupGinServer(handler http.Handler, addr string, l *zap.Logger) *http.Server {
	l.Info("REST API configured", zap.String("address", addr))

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
