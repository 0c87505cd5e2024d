package models

import "time"

type EventType string

const (
	EventOrderCreated EventType = "order.created"
	EventOrderUpdated EventType = "order.updated"
	EventOrderStatus  EventType = "order.status"
	EventTableUpdated EventType = "table.updated"
	EventCashUpdated  EventType = "cash.updated"
)

// UI refresh channels an event is fanned out to.
const (
	ChannelOrders  = "orders"
	ChannelKitchen = "kitchen"
	ChannelTables  = "tables"
	ChannelCash    = "cash"
)

// Event is a fire-and-forget state-change notification for UI refresh.
type Event struct {
	Type       EventType   `json:"type"`
	EntityID   string      `json:"entity_id"`
	Channels   []string    `json:"channels"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewEvent(eventType EventType, entityID string, payload interface{}, channels ...string) Event {
	return Event{
		Type:       eventType,
		EntityID:   entityID,
		Channels:   channels,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
