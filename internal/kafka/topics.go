package kafka

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-pos/internal/logger"
)

// EnsureTopicsExist creates the topics on the cluster controller, skipping existing ones.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("TOPIC", topic, "already exists")
		case err != nil:
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		default:
			log.LogKafka("TOPIC", topic, "created")
		}
	}
	return nil
}
