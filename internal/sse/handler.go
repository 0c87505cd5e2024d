package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

var knownChannels = map[string]bool{
	models.ChannelOrders:  true,
	models.ChannelKitchen: true,
	models.ChannelTables:  true,
	models.ChannelCash:    true,
}

// Handler streams hub events for one channel (?channel=kitchen) as Server-Sent Events.
type Handler struct {
	Hub       *Hub
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{Hub: hub, Logger: log, Heartbeat: 25 * time.Second}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if !knownChannels[channel] {
		http.Error(w, "unknown channel", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Hub.Subscribe(ctx, channel)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"channel\":%q}\n\n", channel)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to channel %s", channel))

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from channel %s", channel))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
