// Package events delivers best-effort state-change notifications. Delivery
// never gates the operation that produced the event.
package events

import (
	"context"
	"fmt"
	"strings"

	"ms-pos/internal/config"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, event models.Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, models.Event) {}

// Multi fans one event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event models.Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// KafkaNotifier routes events to the topic of their entity type.
type KafkaNotifier struct {
	Publisher Publisher
	Topics    config.TopicConfig
	Logger    *logger.Logger
}

func NewKafkaNotifier(p Publisher, topics config.TopicConfig, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{Publisher: p, Topics: topics, Logger: log}
}

func (k *KafkaNotifier) Notify(ctx context.Context, event models.Event) {
	topic := k.topicFor(event.Type)
	if err := k.Publisher.Publish(ctx, topic, event.EntityID, event); err != nil {
		k.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", event.Type, event.EntityID, err))
	}
}

func (k *KafkaNotifier) topicFor(t models.EventType) string {
	switch {
	case strings.HasPrefix(string(t), "table."):
		return k.Topics.Tables
	case strings.HasPrefix(string(t), "cash."):
		return k.Topics.Cash
	default:
		return k.Topics.Orders
	}
}
