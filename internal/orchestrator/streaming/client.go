package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// SubscriptionMessage is sent by clients to subscribe/unsubscribe
type SubscriptionMessage struct {
	Action     string   `json:"action"` // subscribe, unsubscribe
	ProjectIDs []string `json:"project_ids"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID         string
	conn       *websocket.Conn
	projectIDs map[string]bool
	send       chan []byte
	closed     bool // set by the hub under its lock once send is closed
	hub        *Hub
	mu         sync.RWMutex
	logger     *logger.Logger
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:         id,
		conn:       conn,
		projectIDs: make(map[string]bool),
		send:       make(chan []byte, sendBuffer),
		hub:        hub,
		logger:     log.WithFields(zap.String("client_id", id)),
	}
}

// ReadPump reads subscription messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}

		var subMsg SubscriptionMessage
		if err := json.Unmarshal(message, &subMsg); err != nil {
			c.logger.Warn("Invalid subscription message", zap.Error(err))
			continue
		}

		switch subMsg.Action {
		case "subscribe":
			for _, projectID := range subMsg.ProjectIDs {
				if err := c.Subscribe(projectID); err != nil {
					c.logger.Warn("Subscribe failed", zap.String("project_id", projectID), zap.Error(err))
				}
			}
		case "unsubscribe":
			for _, projectID := range subMsg.ProjectIDs {
				c.Unsubscribe(projectID)
			}
		default:
			c.logger.Warn("Unknown action", zap.String("action", subMsg.Action))
		}
	}
}

// WritePump writes queued events to the WebSocket connection, one event per message
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send queues a message without blocking. It reports false when the buffer is full.
func (c *Client) Send(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Subscribe subscribes the client to a project
func (c *Client) Subscribe(projectID string) error {
	c.mu.Lock()
	c.projectIDs[projectID] = true
	c.mu.Unlock()
	if err := c.hub.SubscribeClient(c, projectID); err != nil {
		c.mu.Lock()
		delete(c.projectIDs, projectID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe unsubscribes the client from a project
func (c *Client) Unsubscribe(projectID string) {
	c.mu.Lock()
	delete(c.projectIDs, projectID)
	c.mu.Unlock()
	c.hub.UnsubscribeClient(c, projectID)
}

func (c *Client) isSubscribed(projectID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectIDs[projectID]
}

func (c *Client) projects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.projectIDs))
	for id := range c.projectIDs {
		ids = append(ids, id)
	}
	return ids
}
