package events

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher sends events to a Kafka topic. The record key is the tenant
// id so one tenant's events stay ordered within a partition; ordering across
// tenants is not guaranteed, per contract.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	envelope, err := event.MarshalEnvelope()
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TenantID.String()),
		Value: envelope,
	}
	// Synchronous produce keeps failure attribution simple; the queue above
	// already treats any error as log-and-drop.
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce %q: %w", event.Name, err)
	}
	return nil
}
