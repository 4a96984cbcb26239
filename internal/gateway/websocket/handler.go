package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	ws "github.com/kapjain-rh/error-resolver/pkg/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests to WebSocket connections.
type Handler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws-handler")),
	}
}

// HandleConnection is the gin handler for the /ws route.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, h.hub, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

// RegisterHealthHandler answers health.check frames.
func RegisterHealthHandler(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionHealthCheck, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
			"status":  "ok",
			"service": "error-resolver",
		})
	})
}
