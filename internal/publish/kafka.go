// Package publish relays bus messages to external consumers. The Kafka relay
// is optional: with no brokers configured the in-process bus subscribers are
// the only consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	kafka "github.com/segmentio/kafka-go"

	"github.com/ignitex/ignitex/internal/bus"
)

// KafkaRelay forwards every bus message to a topic, keyed by symbol so a
// consumer partition sees one instrument's signals in order.
type KafkaRelay struct {
	writer *kafka.Writer
	topic  string
	done   chan struct{}
}

// NewKafkaRelay builds the relay writer.
func NewKafkaRelay(brokers []string, topic string) (*KafkaRelay, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		topic = "ignitex.signals"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 250 * time.Millisecond,
	}
	return &KafkaRelay{writer: writer, topic: topic, done: make(chan struct{})}, nil
}

// Run consumes the subscription channel until it closes. Broker errors are
// logged and the message is dropped on the relay side only; in-process
// consumers already received it.
func (r *KafkaRelay) Run(ctx context.Context, messages <-chan bus.Message) {
	defer close(r.done)
	for msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			log.Error().Err(err).Msg("kafka relay failed to marshal message")
			continue
		}
		key := keyFor(msg)
		if err := r.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload}); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", r.topic).Msg("kafka relay write failed")
		}
	}
}

// Close flushes and closes the writer after Run has drained.
func (r *KafkaRelay) Close() error {
	<-r.done
	return r.writer.Close()
}

func keyFor(msg bus.Message) []byte {
	switch {
	case msg.Signal != nil:
		return []byte(msg.Signal.Symbol)
	case msg.Outcome != nil:
		return []byte(msg.Outcome.Symbol)
	default:
		return nil
	}
}
