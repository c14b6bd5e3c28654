package audit

import (
	"context"
	"encoding/json"
	"time"

	dErrors "passport-cri/pkg/domain-errors"
)

// Sink delivers one encoded audit record. Satisfied by the Kafka producer.
type Sink interface {
	Produce(ctx context.Context, msg *Message) error
}

// Message mirrors the producer's record shape so this package does not import
// the Kafka client directly.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Publisher emits audit events. Emission failure is a reportable error, not a
// best-effort drop: audit delivery is a compliance requirement for this flow.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// KafkaPublisher publishes audit events to a Kafka topic, keyed by user id so
// one subject's events stay ordered within a partition.
type KafkaPublisher struct {
	sink  Sink
	topic string
}

func NewKafkaPublisher(sink Sink, topic string) *KafkaPublisher {
	return &KafkaPublisher{sink: sink, topic: topic}
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeAudit, "encode audit event")
	}

	msg := &Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
		Headers: map[string]string{
			"event_type": string(event.Type),
		},
	}
	if err := p.sink.Produce(ctx, msg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeAudit, "failed to send audit event")
	}
	return nil
}
