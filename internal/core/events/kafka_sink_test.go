package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

var _ = Describe("KafkaSink", func() {
	var (
		writer *fakeWriter
		sink   *KafkaSink
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		sink = newKafkaSink(writer, "upi.payments", testLogger)
	})

	It("should key payment events by payment id", func() {
		at := time.Date(2024, 1, 15, 10, 0, 1, 0, time.UTC)
		event := NewPaymentEvent(EventTypePaymentFailed, samplePayment(), "", at)

		Expect(sink.Handle(context.Background(), event)).To(Succeed())

		msgs := writer.written()
		Expect(msgs).To(HaveLen(1))
		Expect(string(msgs[0].Key)).To(Equal("pay_1"))
		Expect(msgs[0].Time).To(Equal(at))
		Expect(headerValue(msgs[0], "event_type")).To(Equal(EventTypePaymentFailed))

		var body map[string]interface{}
		Expect(json.Unmarshal(msgs[0].Value, &body)).To(Succeed())
		Expect(body["type"]).To(Equal(EventTypePaymentFailed))
		Expect(body["payment"]).To(HaveKeyWithValue("status", "failed"))
	})

	It("should key other events by event id", func() {
		event := NewWebhookReceivedEvent(upi.WebhookEvent{Event: "payment.captured"}, time.Now())

		Expect(sink.Handle(context.Background(), event)).To(Succeed())

		msgs := writer.written()
		Expect(msgs).To(HaveLen(1))
		Expect(string(msgs[0].Key)).To(Equal(event.EventID()))
	})

	It("should still write when the publishing context is already cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(sink.Handle(ctx, NewPaymentEvent(EventTypePaymentInitiated, samplePayment(), "default", time.Now()))).To(Succeed())
		Expect(writer.written()).To(HaveLen(1))
	})

	It("should return writer errors", func() {
		writer.err = errors.New("broker unavailable")

		err := sink.Handle(context.Background(), NewPaymentEvent(EventTypePaymentInitiated, samplePayment(), "", time.Now()))
		Expect(err).To(MatchError("broker unavailable"))
	})

	It("should receive every payment and webhook event once attached", func() {
		bus := NewEventBus(testLogger)
		sink.Attach(bus)

		for _, eventType := range PaymentEventTypes {
			Expect(bus.Publish(context.Background(), NewPaymentEvent(eventType, samplePayment(), "", time.Now()))).To(Succeed())
		}
		Expect(bus.Publish(context.Background(), NewWebhookReceivedEvent(upi.WebhookEvent{Event: "x"}, time.Now()))).To(Succeed())
		bus.Wait()

		Expect(writer.written()).To(HaveLen(4))
	})

	It("should close the writer", func() {
		Expect(sink.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
