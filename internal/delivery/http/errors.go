package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/delivery/http/middleware"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/usecase"
)

// writeError maps usecase errors onto HTTP responses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	logger = middleware.LoggerFrom(c, logger)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case usecase.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoResult):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJobFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJobCancelled):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermission), errors.Is(err, domain.ErrAPI):
		logger.Warn("Simulator request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Simulator unavailable"})
	default:
		logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
