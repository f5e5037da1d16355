// Package bus provides the event bus that fans run progress out beyond the
// SSE caller: websocket watchers, other replicas, external consumers.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// SourceOrchestrator marks events produced by a run.
	SourceOrchestrator = "orchestrator"

	// ProjectEventsWildcard matches the event subject of every project.
	ProjectEventsWildcard = "agentboard.project.*.events"
)

// ProjectSubject returns the subject a project's run events are published on.
func ProjectSubject(projectID string) string {
	return fmt.Sprintf("agentboard.project.%s.events", projectID)
}

// Event represents a message on the event bus
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"` // Service that produced the event
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent creates a new event with a UUID and current timestamp
func NewEvent(eventType, source string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, event *Event) error

// Subscription represents an active subscription
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// EventBus interface for event bus operations
type EventBus interface {
	// Publish sends an event to a subject
	Publish(ctx context.Context, subject string, event *Event) error

	// Subscribe creates a subscription to a subject pattern.
	// Handlers on one subscription see events in publish order.
	Subscribe(subject string, handler EventHandler) (Subscription, error)

	// Close closes the connection
	Close()

	// IsConnected returns connection status
	IsConnected() bool
}
