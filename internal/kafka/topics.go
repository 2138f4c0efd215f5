package kafka

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/logger"
)

// TopicNames lists every ticket lifecycle topic.
func TopicNames(topics config.TopicConfig) []string {
	return []string{topics.TicketIssued, topics.TicketStatusChanged, topics.TicketCancelled}
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	// Connect to the first broker to create topics
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

	// Create each topic
	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			// If error contains "already exists", it's not a problem
			if err.Error() == "kafka server: topic already exists" {
				log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
				continue
			}
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
			// Continue trying to create other topics even if one fails
		} else {
			log.Info("KAFKA", fmt.Sprintf("Created topic: %s", topic))
		}
	}

	// Wait a moment for topics to be fully created
	time.Sleep(1 * time.Second)
	return nil
}
