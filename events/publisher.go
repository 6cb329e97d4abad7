package events

import (
	"context"
	"encoding/json"
	"fmt"

	aws_pkg "github.com/iPranay05/Skill-Prob-sub002/pkg/aws"
	"github.com/iPranay05/Skill-Prob-sub002/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits domain events. Publishing is best effort: callers log
// failures and never roll back a committed change because of them.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
	Close() error
}

// SNSPublisher publishes events to one SNS topic with an event_type
// attribute for subscription filtering.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, data, map[string]string{"event_type": event.EventType})
}

func (p *SNSPublisher) Close() error { return nil }

// KafkaWriter is the subset of *kafka.Writer the publisher uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by their entity id so events for one
// enrollment stay ordered within a partition.
type KafkaPublisher struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaPublisher{writer: w, logger: logger}
}

func NewKafkaPublisherWithWriter(w KafkaWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(event.Key),
		Value:   data,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.EventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events; used when no backend is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.DomainEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
