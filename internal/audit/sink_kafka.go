package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"credvault/internal/platform/kafka/producer"
)

// DefaultTopic is the event stream topic for credential lifecycle and
// disclosure events.
const DefaultTopic = "credential.events"

// KafkaSink publishes audit events to the event stream. Publishing is
// fire-and-forget; the store remains the system of record.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaSink wraps a producer as an audit Sink. An empty topic falls back
// to DefaultTopic.
func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{producer: p, topic: topic}
}

// streamEvent is the wire shape on the topic. Keyed by credential so
// per-credential ordering holds within a partition.
type streamEvent struct {
	Action       string            `json:"action"`
	CredentialID string            `json:"credential_id,omitempty"`
	Actor        string            `json:"actor,omitempty"`
	Detail       map[string]string `json:"detail,omitempty"`
	OccurredAt   string            `json:"occurred_at"`
}

func (s *KafkaSink) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(streamEvent{
		Action:       string(event.Action),
		CredentialID: event.CredentialID.String(),
		Actor:        event.Actor,
		Detail:       event.Detail,
		OccurredAt:   event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	return s.producer.ProduceAsync(&producer.Message{
		Topic: s.topic,
		Key:   []byte(event.CredentialID.String()),
		Value: payload,
	})
}
