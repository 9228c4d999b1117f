// Package http exposes the gateway's REST and WebSocket API.
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/delivery/http/middleware"
	"github.com/c12qe/c12sim-go/internal/usecase"
)

// Usecases bundles everything the router serves.
type Usecases struct {
	Submit   *usecase.SubmitJobUsecase
	GetJob   *usecase.GetJobUsecase
	Backends *usecase.ListBackendsUsecase
}

// NewRouter creates and configures the Gin router with all routes and middleware.
// ctx bounds the rate limiter's background sweep.
func NewRouter(
	ctx context.Context,
	uc Usecases,
	checks map[string]Check,
	logger *zap.Logger,
	rateLimitPerMin int,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(checks, logger)
		v1.GET("/health", healthHandler.Health)

		backendHandler := NewBackendHandler(uc.Backends, logger)
		v1.GET("/backends", backendHandler.List)

		jobHandler := NewJobHandler(uc.Submit, uc.GetJob, logger)
		v1.POST("/jobs",
			middleware.RateLimiter(ctx, rateLimitPerMin),
			middleware.BodyLimit(usecase.MaxSubmitBody, func(c *gin.Context, err error) {
				writeError(c, logger, err)
			}),
			jobHandler.Submit,
		)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/:id", jobHandler.GetByID)
		v1.GET("/jobs/:id/result", jobHandler.Result)

		wsHandler := NewWebSocketHandler(uc.GetJob, logger)
		v1.GET("/jobs/:id/stream", wsHandler.Stream)
	}

	return router
}
