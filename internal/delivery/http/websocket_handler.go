package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/c12qe/c12sim-go/internal/usecase"
)

const streamInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams job status changes over a WebSocket.
type WebSocketHandler struct {
	getJobUC *usecase.GetJobUsecase
	interval time.Duration
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getJobUC *usecase.GetJobUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		getJobUC: getJobUC,
		interval: streamInterval,
		logger:   logger,
	}
}

// Stream handles GET /api/v1/jobs/:id/stream (WebSocket upgrade). A frame
// is sent whenever the status changes; the socket closes once the job is terminal.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("job_id", id.String()))

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last string
	for {
		job, err := h.getJobUC.Execute(ctx, id)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": "Job not found"})
			return
		}

		if string(job.Status) != last {
			if err := conn.WriteJSON(job); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				return
			}
			last = string(job.Status)
		}

		if job.Status.IsTerminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job "+last))
			h.logger.Debug("Job reached terminal state, closing WebSocket", zap.String("job_id", id.String()))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
