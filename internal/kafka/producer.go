package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-pos/internal/logger"
)

// Producer writes JSON messages to any topic; the topic is chosen per message.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish marshals value and writes it keyed by key, so events of one entity stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}

	p.Logger.Debug("KAFKA", fmt.Sprintf("Publishing to %s key=%s", topic, key))

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
