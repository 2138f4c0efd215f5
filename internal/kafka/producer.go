package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-demo-booking/internal/config"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
	Logger *logger.Logger
}

// NewProducer builds a writer without a fixed topic; each message names its own.
func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// TopicFor maps an event type onto its configured topic.
func (p *Producer) TopicFor(eventType models.TicketEventType) (string, error) {
	switch eventType {
	case models.TicketEventIssued:
		return p.Topics.TicketIssued, nil
	case models.TicketEventStatusChanged:
		return p.Topics.TicketStatusChanged, nil
	case models.TicketEventCancelled:
		return p.Topics.TicketCancelled, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// PublishTicketEvent streams a ticket lifecycle event keyed by ticket id so
// that events for one ticket stay ordered.
func (p *Producer) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	topic, err := p.TopicFor(event.Type)
	if err != nil {
		return err
	}
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", topic, string(msgBytes))
	return p.Publish(ctx, topic, event.TicketID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
