package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer creates a group consumer over several topics.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start reads events until ctx is cancelled, passing each decoded event to handler.
func (c *Consumer) Start(ctx context.Context, handler func(models.Event)) {
	c.logger.LogKafka("CONSUME", fmt.Sprint(c.reader.Config().GroupTopics), "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		var event models.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message on %s: %v", msg.Topic, err))
			continue
		}

		c.logger.Debug("KAFKA", fmt.Sprintf("Received %s for %s", event.Type, event.EntityID))
		handler(event)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
