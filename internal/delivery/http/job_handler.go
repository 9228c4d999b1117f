package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/delivery/http/middleware"
	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// JobHandler handles HTTP requests for simulation jobs.
type JobHandler struct {
	submitUC *usecase.SubmitJobUsecase
	getJobUC *usecase.GetJobUsecase
	logger   *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(submitUC *usecase.SubmitJobUsecase, getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		submitUC: submitUC,
		getJobUC: getJobUC,
		logger:   logger,
	}
}

// Submit handles POST /api/v1/jobs
func (h *JobHandler) Submit(c *gin.Context) {
	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := middleware.BodyTooLarge(err); errors.Is(err, domain.ErrPayloadTooLarge) {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// List handles GET /api/v1/jobs?limit=&offset=
func (h *JobHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	jobs, err := h.getJobUC.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "limit": limit, "offset": offset})
}

// GetByID handles GET /api/v1/jobs/:id
func (h *JobHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	job, err := h.getJobUC.Execute(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Result handles GET /api/v1/jobs/:id/result
func (h *JobHandler) Result(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	payload, err := h.getJobUC.Result(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": id, "result": payload})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
