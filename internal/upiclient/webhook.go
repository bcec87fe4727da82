package upiclient

import (
	"context"
	"encoding/json"
	"net/http"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
)

// SendWebhook posts a notification to the sandbox webhook sink.
func (c *Client) SendWebhook(ctx context.Context, event string, payload json.RawMessage) (*upi.WebhookAck, error) {
	if event == "" {
		return nil, errors.NewValidationFieldError("event", "event is required", errors.ErrCodeMissingFields)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, errors.NewValidationFieldError("payload", "payload must be valid JSON", errors.ErrCodeValidationFailed)
	}

	var ack upi.WebhookAck
	body := upi.WebhookEvent{Event: event, Payload: payload}
	if err := c.do(ctx, http.MethodPost, "/webhook/payment", body, &ack, errors.ErrCodeNotFound); err != nil {
		return nil, err
	}
	return &ack, nil
}
