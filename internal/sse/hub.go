package sse

import (
	"context"
	"sync"

	"ms-pos/internal/models"
)

// Hub keeps SSE subscribers per UI channel and broadcasts events to them.
type Hub struct {
	clients map[string][]chan models.Event
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string][]chan models.Event)}
}

// Subscribe registers a client on channel until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, channel string) chan models.Event {
	clientChan := make(chan models.Event, 10)

	h.mu.Lock()
	h.clients[channel] = append(h.clients[channel], clientChan)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(channel, clientChan)
	}()

	return clientChan
}

// Notify broadcasts to every channel the event names. Slow clients miss events
// instead of blocking the sender.
func (h *Hub) Notify(_ context.Context, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, channel := range event.Channels {
		for _, clientChan := range h.clients[channel] {
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *Hub) remove(channel string, clientChan chan models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[channel]
	for i, ch := range clients {
		if ch == clientChan {
			h.clients[channel] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(h.clients[channel]) == 0 {
		delete(h.clients, channel)
	}
}

func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}
