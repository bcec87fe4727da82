package upi

import (
	"encoding/json"
	"time"
)

const (
	CurrencyINR   = "INR"
	MethodUPI     = "upi"
	EntityPayment = "payment"

	OrderStatusCreated = "created"

	PaymentStatusCreated  = "created"
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"

	HealthStatusHealthy = "healthy"
)

// Order is a reserved payment intent. Orders never change after creation.
type Order struct {
	ID             string    `json:"id" gorm:"primaryKey;column:id"`
	Amount         int64     `json:"amount" gorm:"column:amount;not null"`
	Currency       string    `json:"currency" gorm:"column:currency;not null"`
	Receipt        string    `json:"receipt,omitempty" gorm:"column:receipt"`
	PaymentCapture int       `json:"payment_capture" gorm:"column:payment_capture;not null"`
	Status         string    `json:"status" gorm:"column:status;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;not null"`
}

func (Order) TableName() string {
	return "upi_orders"
}

// Payment is one attempt to settle an Order against a VPA.
type Payment struct {
	ID               string     `json:"id" gorm:"primaryKey;column:id"`
	Entity           string     `json:"entity" gorm:"column:entity;not null"`
	Amount           int64      `json:"amount" gorm:"column:amount;not null"`
	Currency         string     `json:"currency" gorm:"column:currency;not null"`
	OrderID          string     `json:"order_id" gorm:"column:order_id;not null;index"`
	VPA              string     `json:"vpa" gorm:"column:vpa;not null"`
	Method           string     `json:"method" gorm:"column:method;not null"`
	Status           string     `json:"status" gorm:"column:status;not null"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at;not null"`
	CapturedAt       *time.Time `json:"captured_at,omitempty" gorm:"column:captured_at"`
	ErrorCode        *string    `json:"error_code,omitempty" gorm:"column:error_code"`
	ErrorDescription *string    `json:"error_description,omitempty" gorm:"column:error_description"`
}

func (Payment) TableName() string {
	return "upi_payments"
}

func (p *Payment) IsTerminal() bool {
	return IsTerminalStatus(p.Status)
}

func (p *Payment) IsCaptured() bool {
	return p.Status == PaymentStatusCaptured
}

// Apply performs the single forward transition out of created.
func (p *Payment) Apply(res Resolution) {
	p.Status = res.Status
	switch res.Status {
	case PaymentStatusCaptured:
		at := res.At
		p.CapturedAt = &at
	case PaymentStatusFailed:
		code := res.ErrorCode
		desc := res.ErrorDescription
		p.ErrorCode = &code
		p.ErrorDescription = &desc
	}
}

// Clone returns a deep copy so stored state is never aliased by callers.
func (p *Payment) Clone() *Payment {
	cp := *p
	if p.CapturedAt != nil {
		t := *p.CapturedAt
		cp.CapturedAt = &t
	}
	if p.ErrorCode != nil {
		s := *p.ErrorCode
		cp.ErrorCode = &s
	}
	if p.ErrorDescription != nil {
		s := *p.ErrorDescription
		cp.ErrorDescription = &s
	}
	return &cp
}

func IsTerminalStatus(status string) bool {
	return status == PaymentStatusCaptured || status == PaymentStatusFailed
}

// Resolution describes the terminal state a payment moves to.
type Resolution struct {
	Status           string
	At               time.Time
	ErrorCode        string
	ErrorDescription string
}

type WebhookEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type WebhookAck struct {
	Received  bool      `json:"received"`
	Timestamp time.Time `json:"timestamp"`
}

type Health struct {
	Status    string    `json:"status"`
	Orders    int64     `json:"orders"`
	Payments  int64     `json:"payments"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
