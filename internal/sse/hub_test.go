package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/models"
)

func TestHubBroadcastsToNamedChannels(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kitchen := hub.Subscribe(ctx, models.ChannelKitchen)
	cash := hub.Subscribe(ctx, models.ChannelCash)

	hub.Notify(ctx, models.NewEvent(models.EventOrderStatus, "o1", nil, models.ChannelKitchen, models.ChannelOrders))

	select {
	case ev := <-kitchen:
		assert.Equal(t, "o1", ev.EntityID)
	case <-time.After(time.Second):
		t.Fatal("kitchen subscriber did not receive event")
	}
	assert.Len(t, cash, 0)
}

func TestHubDropsWhenClientIsSlow(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, models.ChannelTables)
	for i := 0; i < 25; i++ {
		hub.Notify(ctx, models.NewEvent(models.EventTableUpdated, "t1", nil, models.ChannelTables))
	}
	assert.Len(t, ch, 10)
}

func TestHubRemovesClientOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, models.ChannelOrders)
	require.Equal(t, 1, hub.ClientCount(models.ChannelOrders))

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount(models.ChannelOrders) == 0 }, time.Second, 10*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)
}
