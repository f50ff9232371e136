// Package kafka mirrors audit entries to a Kafka topic. Records are keyed by
// reference number, so Kafka's per-key ordering matches the recorder's
// per-reference ordering guarantee.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"ekyc/internal/audit"
	"ekyc/internal/platform/config"
)

type record struct {
	EntryID         string        `json:"entry_id"`
	ReferenceNumber string        `json:"reference_number,omitempty"`
	EventType       string        `json:"event_type"`
	Payload         audit.Payload `json:"payload"`
	Outcome         string        `json:"outcome"`
	Timestamp       string        `json:"timestamp"`
}

// Publisher implements audit.Sink on top of a franz-go client.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: cfg.Topic}, nil
}

// Append produces one record per entry. Called from the recorder worker, so a
// synchronous produce here does not block the business path.
func (p *Publisher) Append(ctx context.Context, entry audit.Entry) error {
	value, err := json.Marshal(record{
		EntryID:         entry.EntryID,
		ReferenceNumber: entry.ReferenceNumber,
		EventType:       string(entry.EventType),
		Payload:         entry.Payload,
		Outcome:         string(entry.Outcome),
		Timestamp:       entry.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.ReferenceNumber),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
