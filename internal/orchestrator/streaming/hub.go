package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/events/bus"
)

// ErrClientClosed is returned when subscribing a client the hub already dropped.
var ErrClientClosed = errors.New("websocket client is closed")

// Hub manages WebSocket clients and forwards each project's bus events to
// the clients subscribed to that project. The hub holds one bus subscription
// per project with at least one subscriber.
type Hub struct {
	eventBus bus.EventBus

	// Registered clients
	clients map[*Client]bool

	// Clients by project ID for message routing
	projectClients map[string]map[*Client]bool
	busSubs        map[string]bus.Subscription

	// Channels
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu     sync.RWMutex
	logger *logger.Logger
}

// BroadcastMessage contains a bus event to forward
type BroadcastMessage struct {
	ProjectID string
	Event     *bus.Event
}

// NewHub creates a new WebSocket hub fed by eventBus
func NewHub(eventBus bus.EventBus, log *logger.Logger) *Hub {
	return &Hub{
		eventBus:       eventBus,
		clients:        make(map[*Client]bool),
		projectClients: make(map[string]map[*Client]bool),
		busSubs:        make(map[string]bus.Subscription),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		logger:         log.WithFields(zap.String("component", "websocket_hub")),
	}
}

// Run starts the hub processing loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closed = true
				close(client.send)
				delete(h.clients, client)
			}
			for projectID, sub := range h.busSubs {
				_ = sub.Unsubscribe()
				delete(h.busSubs, projectID)
			}
			h.projectClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClientLocked(client)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.projectClients[msg.ProjectID]))
	for client := range h.projectClients[msg.ProjectID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg.Event)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}

	for _, client := range clients {
		if !client.Send(data) {
			// Client send buffer is full, drop the connection
			h.logger.Warn("Client too slow, disconnecting", zap.String("client_id", client.ID))
			h.mu.Lock()
			h.removeClientLocked(client)
			h.mu.Unlock()
		}
	}
}

// removeClientLocked drops a client and its subscriptions. h.mu must be held.
func (h *Hub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closed = true
	close(client.send)

	for _, projectID := range client.projects() {
		h.unsubscribeLocked(client, projectID)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues an event for the clients of a project. It never blocks:
// when the hub is backed up the event is dropped, since the bus handler runs
// on the publisher's goroutine.
func (h *Hub) Broadcast(projectID string, event *bus.Event) {
	select {
	case h.broadcast <- &BroadcastMessage{ProjectID: projectID, Event: event}:
	default:
		h.logger.Warn("Broadcast queue full, dropping event",
			zap.String("project_id", projectID),
			zap.String("event_type", event.Type))
	}
}

// SubscribeClient subscribes a client to a project, opening the project's
// bus subscription for its first subscriber. A client whose send channel the
// hub has closed is rejected with ErrClientClosed.
func (h *Hub) SubscribeClient(client *Client, projectID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return ErrClientClosed
	}

	if _, ok := h.busSubs[projectID]; !ok && h.eventBus != nil {
		sub, err := h.eventBus.Subscribe(bus.ProjectSubject(projectID), func(ctx context.Context, event *bus.Event) error {
			h.Broadcast(projectID, event)
			return nil
		})
		if err != nil {
			return err
		}
		h.busSubs[projectID] = sub
	}

	if _, ok := h.projectClients[projectID]; !ok {
		h.projectClients[projectID] = make(map[*Client]bool)
	}
	h.projectClients[projectID][client] = true
	h.logger.Debug("Client subscribed to project",
		zap.String("client_id", client.ID),
		zap.String("project_id", projectID))
	return nil
}

// UnsubscribeClient unsubscribes a client from a project
func (h *Hub) UnsubscribeClient(client *Client, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, projectID)
	h.logger.Debug("Client unsubscribed from project",
		zap.String("client_id", client.ID),
		zap.String("project_id", projectID))
}

func (h *Hub) unsubscribeLocked(client *Client, projectID string) {
	clients, ok := h.projectClients[projectID]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) > 0 {
		return
	}
	delete(h.projectClients, projectID)
	if sub, ok := h.busSubs[projectID]; ok {
		if err := sub.Unsubscribe(); err != nil {
			h.logger.Debug("Failed to close bus subscription", zap.String("project_id", projectID), zap.Error(err))
		}
		delete(h.busSubs, projectID)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetProjectSubscriberCount returns the number of clients subscribed to a project
func (h *Hub) GetProjectSubscriberCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projectClients[projectID])
}
