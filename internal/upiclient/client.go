package upiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/common/validation"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultBaseURL        = "http://localhost:3001/v1"
	DefaultMaxAttempts    = 30
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	PollInterval   time.Duration
	HTTPClient     *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollInterval < 0 {
		c.PollInterval = 0
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	return c
}

// Client talks to the sandbox. It holds no per-payment state and is safe for concurrent use.
type Client struct {
	cfg    Config
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewClient(cfg Config, clock clockwork.Clock, logger *slog.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg.withDefaults(),
		clock:  clock,
		logger: logger,
	}
}

type createOrderBody struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type createPaymentBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	VPA      string `json:"vpa"`
	Method   string `json:"method"`
}

// ToPaise converts rupees to paise, rejecting amounts that round to zero or less.
func ToPaise(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, errors.ErrInvalidAmount
	}
	paise := math.Round(amount * 100)
	if paise <= 0 || paise > math.MaxInt64/2 {
		return 0, errors.ErrInvalidAmount
	}
	return int64(paise), nil
}

// CreateOrder reserves an order for amount rupees. Each call creates a new order.
func (c *Client) CreateOrder(ctx context.Context, amount float64, receipt string) (*upi.Order, error) {
	paise, err := ToPaise(amount)
	if err != nil {
		return nil, err
	}
	if receipt == "" {
		receipt = fmt.Sprintf("rcpt_%d", c.clock.Now().UnixMilli())
	}

	body := createOrderBody{
		Amount:         paise,
		Currency:       upi.CurrencyINR,
		Receipt:        receipt,
		PaymentCapture: 1,
	}

	var order upi.Order
	if err := c.do(ctx, http.MethodPost, "/orders", body, &order, errors.ErrCodeNotFound); err != nil {
		c.logger.Error("order creation failed", "amount", paise, "error", err)
		return nil, err
	}

	c.logger.Info("order created", "order_id", order.ID, "amount", order.Amount)
	return &order, nil
}

// InitiatePayment starts a payment of amount rupees against orderID.
func (c *Client) InitiatePayment(ctx context.Context, orderID string, amount float64, vpa string) (*upi.Payment, error) {
	if orderID == "" {
		return nil, errors.NewValidationFieldError("order_id", "order_id is required", errors.ErrCodeMissingFields)
	}
	paise, err := ToPaise(amount)
	if err != nil {
		return nil, err
	}
	if appErr := validation.ValidateVPA(vpa); appErr != nil {
		return nil, errors.ErrInvalidVPA.WithDetails(appErr.Details)
	}

	body := createPaymentBody{
		Amount:   paise,
		Currency: upi.CurrencyINR,
		OrderID:  orderID,
		VPA:      vpa,
		Method:   upi.MethodUPI,
	}

	var payment upi.Payment
	if err := c.do(ctx, http.MethodPost, "/payments", body, &payment, errors.ErrCodeOrderNotFound); err != nil {
		c.logger.Error("payment initiation failed", "order_id", orderID, "vpa", vpa, "error", err)
		return nil, err
	}

	c.logger.Info("payment initiated", "payment_id", payment.ID, "order_id", orderID, "vpa", vpa)
	return &payment, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*upi.Payment, error) {
	if paymentID == "" {
		return nil, errors.NewValidationFieldError("payment_id", "payment_id is required", errors.ErrCodeMissingFields)
	}

	var payment upi.Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment, errors.ErrCodePaymentNotFound); err != nil {
		return nil, err
	}
	return &payment, nil
}

// do sends one request. Failures to get an answer become transport errors;
// non-2xx answers are mapped by status code.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, notFoundCode errors.ErrorCode) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("failed to marshal request", err)
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := errors.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return errors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if traceID := errors.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewTransportError("network error", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewTransportError("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody, notFoundCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.NewServerError("invalid response body", resp.StatusCode).WithCause(err)
	}
	return nil
}

func statusError(status int, body []byte, notFoundCode errors.ErrorCode) *errors.AppError {
	var payload upi.ErrorResponse
	message := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		message = payload.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return errors.NewNotFoundError(message, notFoundCode)
	case status >= 400 && status < 500:
		appErr := errors.NewValidationError(message, errors.ErrCodeValidationFailed)
		appErr.StatusCode = status
		return appErr
	default:
		return errors.NewServerError(message, status)
	}
}
