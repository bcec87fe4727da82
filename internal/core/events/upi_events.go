package events

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/google/uuid"
)

const (
	EventTypePaymentInitiated = "payment.initiated"
	EventTypePaymentCaptured  = "payment.captured"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeWebhookReceived  = "webhook.received"
)

// PaymentEventTypes lists the events emitted over a payment's lifetime.
var PaymentEventTypes = []string{
	EventTypePaymentInitiated,
	EventTypePaymentCaptured,
	EventTypePaymentFailed,
}

type PaymentEvent struct {
	BaseEvent
	Payment upi.Payment `json:"payment"`
	Policy  string      `json:"policy,omitempty"`
}

func NewPaymentEvent(eventType string, payment *upi.Payment, policy string, at time.Time) *PaymentEvent {
	data := map[string]interface{}{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"vpa":        payment.VPA,
		"amount":     payment.Amount,
		"currency":   payment.Currency,
		"status":     payment.Status,
	}
	if policy != "" {
		data["policy"] = policy
	}
	if payment.ErrorCode != nil {
		data["error_code"] = *payment.ErrorCode
	}

	return &PaymentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: at,
			Data:      data,
		},
		Payment: *payment.Clone(),
		Policy:  policy,
	}
}

// PaymentEventTypeFor maps a terminal status to the event announcing it.
func PaymentEventTypeFor(status string) string {
	if status == upi.PaymentStatusCaptured {
		return EventTypePaymentCaptured
	}
	return EventTypePaymentFailed
}

type WebhookReceivedEvent struct {
	BaseEvent
	Webhook upi.WebhookEvent `json:"webhook"`
}

func NewWebhookReceivedEvent(webhook upi.WebhookEvent, at time.Time) *WebhookReceivedEvent {
	data := map[string]interface{}{
		"event": webhook.Event,
	}
	if len(webhook.Payload) > 0 {
		data["payload"] = json.RawMessage(webhook.Payload)
	}

	return &WebhookReceivedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeWebhookReceived,
			Timestamp: at,
			Data:      data,
		},
		Webhook: webhook,
	}
}
