package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus events to a kafka topic, keyed by payment id.
type KafkaSink struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka sink initialized", "topic", topic, "brokers", brokers)
	return newKafkaSink(w, topic, logger)
}

func newKafkaSink(w messageWriter, topic string, logger *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer:       w,
		topic:        topic,
		writeTimeout: 5 * time.Second,
		logger:       logger,
	}
}

// Attach subscribes the sink to every payment and webhook event on bus.
func (s *KafkaSink) Attach(bus *EventBus) {
	for _, eventType := range PaymentEventTypes {
		bus.Subscribe(eventType, s.Handle)
	}
	bus.Subscribe(EventTypeWebhookReceived, s.Handle)
}

func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	key := event.EventID()
	if pe, ok := event.(*PaymentEvent); ok {
		key = pe.Payment.ID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}

	// the request context is usually gone by the time async handlers run
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.writer.WriteMessages(writeCtx, msg); err != nil {
		s.logger.Error("failed to write event to kafka",
			"topic", s.topic,
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
		return err
	}

	s.logger.Debug("event written to kafka", "topic", s.topic, "event_type", event.EventType(), "key", key)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
