// Package events publishes persisted chat messages to a kafka topic
// for downstream consumers (indexing, moderation, analytics). The
// stream is fire-and-forget relative to the socket path: a publish
// failure never fails the send that triggered it.
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/thornboo/jincheng-campus-api/internal/model"
)

type Producer interface {
	MessagePersisted(ctx context.Context, m *model.ChatMessage) error
	Close() error
}

type KafkaProducer struct {
	writer *kafkago.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) MessagePersisted(ctx context.Context, m *model.ChatMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	// keyed by session so one conversation stays on one partition
	msg := kafkago.Message{
		Key:   []byte(m.SessionID),
		Value: b,
		Time:  time.Now(),
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
