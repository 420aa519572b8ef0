package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"history-service/internal/domain"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

// ChangePublisher streams recorded change events to Kafka so downstream
// consumers (reporting, search indexing) see the same feed the store holds.
type ChangePublisher struct {
	producer *kafka.Producer
	topic    string
}

func NewChangePublisher(bootstrapServers, topic string) (*ChangePublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": bootstrapServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("topic", topic).Info("Change event Kafka producer created")

	return &ChangePublisher{producer: p, topic: topic}, nil
}

func (p *ChangePublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	// Keying by entity keeps one entity's history ordered per partition.
	key := fmt.Sprintf("%s:%d", event.EntityType, event.EntityID)

	deliveryChan := make(chan kafka.Event, 1)
	defer close(deliveryChan)

	if err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          payload,
		Opaque:         deliveryChan,
	}, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case e := <-deliveryChan:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", msg.TopicPartition.Error)
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("delivery timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChangePublisher) Close() {
	log.Info("Closing change event Kafka producer...")
	p.producer.Flush(15 * 1000)
	p.producer.Close()
}
