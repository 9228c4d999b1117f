package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/usecase"
)

// BackendHandler lists simulator backends.
type BackendHandler struct {
	backendsUC *usecase.ListBackendsUsecase
	logger     *zap.Logger
}

// NewBackendHandler creates a new BackendHandler.
func NewBackendHandler(backendsUC *usecase.ListBackendsUsecase, logger *zap.Logger) *BackendHandler {
	return &BackendHandler{backendsUC: backendsUC, logger: logger}
}

// List handles GET /api/v1/backends?name=
func (h *BackendHandler) List(c *gin.Context) {
	backends, err := h.backendsUC.Execute(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backends": backends})
}
