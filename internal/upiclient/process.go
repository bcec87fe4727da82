package upiclient

import (
	"context"

	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
)

// PaymentResult is the outcome of a full create, initiate and poll run.
// Error is set when any stage failed; a declined payment only sets Success to false.
type PaymentResult struct {
	Success bool         `json:"success"`
	Order   *upi.Order   `json:"order,omitempty"`
	Payment *upi.Payment `json:"payment,omitempty"`
	Amount  float64      `json:"amount"`
	VPA     string       `json:"vpa"`
	Error   string       `json:"error,omitempty"`
	Err     error        `json:"-"`
}

// ProcessPayment never returns an error; failures are reported in the result.
func (c *Client) ProcessPayment(ctx context.Context, amount float64, vpa, receipt string) PaymentResult {
	result := PaymentResult{Amount: amount, VPA: vpa}

	fail := func(stage string, err error) PaymentResult {
		c.logger.Error("payment processing failed", "stage", stage, "vpa", vpa, "error", err)
		result.Success = false
		result.Error = err.Error()
		result.Err = err
		return result
	}

	order, err := c.CreateOrder(ctx, amount, receipt)
	if err != nil {
		return fail("create_order", err)
	}
	result.Order = order

	payment, err := c.InitiatePayment(ctx, order.ID, amount, vpa)
	if err != nil {
		return fail("initiate_payment", err)
	}
	result.Payment = payment

	polled, err := c.PollStatus(ctx, payment.ID, PollOptions{})
	if err != nil {
		return fail("poll_status", err)
	}

	result.Success = polled.Success
	result.Payment = polled.Payment
	c.logger.Info("payment processed",
		"payment_id", polled.Payment.ID,
		"status", polled.Payment.Status,
		"attempts", polled.Attempts)
	return result
}
