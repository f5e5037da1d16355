package streaming

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/errors"
	"github.com/agentboard/agentboard/internal/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// StreamProject handles a WebSocket connection watching one project
// WS /api/v1/projects/:id/ws
func (h *WSHandler) StreamProject(c *gin.Context) {
	projectID := c.Param("id")
	if projectID == "" {
		appErr := errors.BadRequest("project id is required")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection",
			zap.String("project_id", projectID),
			zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, conn, h.hub, h.logger)
	h.hub.Register(client)

	if err := client.Subscribe(projectID); err != nil {
		h.logger.Error("Failed to subscribe client",
			zap.String("client_id", clientID),
			zap.String("project_id", projectID),
			zap.Error(err))
		h.hub.Unregister(client)
		_ = conn.Close()
		return
	}

	h.logger.Info("WebSocket connection established for project",
		zap.String("client_id", clientID),
		zap.String("project_id", projectID),
		zap.Int("project_subscribers", h.hub.GetProjectSubscriberCount(projectID)))

	// ReadPump also accepts subscribe/unsubscribe messages for more projects.
	go client.WritePump()
	go client.ReadPump()
}

// SetupWebSocketRoutes adds WebSocket routes to the router
func SetupWebSocketRoutes(router *gin.RouterGroup, handler *WSHandler) {
	router.GET("/projects/:id/ws", handler.StreamProject)
}
