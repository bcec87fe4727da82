package sandbox

import (
	"encoding/json"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/common/validation"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
)

// CreateOrderRequest is the POST /v1/orders body. Amount is in paise.
type CreateOrderRequest struct {
	Amount         json.Number `json:"amount"`
	Currency       string      `json:"currency,omitempty"`
	Receipt        string      `json:"receipt,omitempty"`
	PaymentCapture *int        `json:"payment_capture,omitempty"`
}

// Validate checks the request and returns the amount in paise.
func (r *CreateOrderRequest) Validate() (int64, error) {
	amount, ok := parseAmount(r.Amount)
	if !ok {
		return 0, errors.ErrInvalidAmount
	}
	if appErr := validation.ValidateAmount(amount); appErr != nil {
		return 0, errors.ErrInvalidAmount.WithDetails(appErr.Details)
	}

	validator := validation.NewValidator()
	validator.Field("receipt", r.Receipt).MaxLength(40)
	if appErr := validator.Validate(); appErr != nil {
		return 0, appErr
	}
	return amount, nil
}

func (r *CreateOrderRequest) currency() string {
	if r.Currency == "" {
		return upi.CurrencyINR
	}
	return r.Currency
}

func (r *CreateOrderRequest) paymentCapture() int {
	if r.PaymentCapture == nil {
		return 1
	}
	return *r.PaymentCapture
}

// CreatePaymentRequest is the POST /v1/payments body.
type CreatePaymentRequest struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency,omitempty"`
	OrderID  string      `json:"order_id"`
	VPA      string      `json:"vpa"`
	Method   string      `json:"method,omitempty"`
}

// Validate checks the request and returns the amount in paise.
func (r *CreatePaymentRequest) Validate() (int64, error) {
	validator := validation.NewValidator()
	validator.Field("amount", r.Amount.String()).Required()
	validator.Field("order_id", r.OrderID).Required()
	validator.Field("vpa", r.VPA).Required()
	if appErr := validator.Validate(); appErr != nil {
		return 0, errors.ErrMissingFields.WithDetails(appErr.Details)
	}

	amount, ok := parseAmount(r.Amount)
	if !ok {
		return 0, errors.ErrInvalidAmount
	}
	if appErr := validation.ValidateAmount(amount); appErr != nil {
		return 0, errors.ErrInvalidAmount.WithDetails(appErr.Details)
	}
	return amount, nil
}

func (r *CreatePaymentRequest) currency() string {
	if r.Currency == "" {
		return upi.CurrencyINR
	}
	return r.Currency
}

func (r *CreatePaymentRequest) method() string {
	if r.Method == "" {
		return upi.MethodUPI
	}
	return r.Method
}

// parseAmount accepts only integral amounts; paise have no fractional part.
func parseAmount(n json.Number) (int64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}
