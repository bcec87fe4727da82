package sandbox

import (
	"context"
	"log/slog"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/core/events"
	"github.com/frahmantamala/upi-sandbox/internal/metrics"
	"github.com/jaevor/go-nanoid"
	"github.com/jonboulle/clockwork"
)

const (
	OrderIDPrefix   = "order_"
	PaymentIDPrefix = "pay_"

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 14
)

// RepositoryAPI stores orders and payments. Implementations return copies.
type RepositoryAPI interface {
	CreateOrder(order *upi.Order) error
	GetOrder(id string) (*upi.Order, error)
	CreatePayment(payment *upi.Payment) error
	GetPayment(id string) (*upi.Payment, error)
	// ResolvePayment applies res only while the payment is still created.
	ResolvePayment(id string, res upi.Resolution) (*upi.Payment, error)
	DeletePayment(id string) (*upi.Payment, error)
	Counts() (orders int64, payments int64, err error)
}

type Service struct {
	repo      RepositoryAPI
	policies  *PolicyTable
	clock     clockwork.Clock
	scheduler *Scheduler
	bus       *events.EventBus
	metrics   *metrics.SandboxMetrics
	logger    *slog.Logger
	newID     func() string
}

func NewService(repo RepositoryAPI, policies *PolicyTable, clock clockwork.Clock, bus *events.EventBus, m *metrics.SandboxMetrics, logger *slog.Logger) (*Service, error) {
	newID, err := nanoid.CustomASCII(idAlphabet, idLength)
	if err != nil {
		return nil, errors.NewInternalError("failed to create id generator", err)
	}
	if bus == nil {
		bus = events.NewEventBus(logger)
	}

	return &Service{
		repo:      repo,
		policies:  policies,
		clock:     clock,
		scheduler: NewScheduler(clock),
		bus:       bus,
		metrics:   m,
		logger:    logger,
		newID:     newID,
	}, nil
}

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*upi.Order, error) {
	amount, err := req.Validate()
	if err != nil {
		s.logger.Warn("order rejected", "error", err)
		return nil, err
	}

	order := &upi.Order{
		ID:             OrderIDPrefix + s.newID(),
		Amount:         amount,
		Currency:       req.currency(),
		Receipt:        req.Receipt,
		PaymentCapture: req.paymentCapture(),
		Status:         upi.OrderStatusCreated,
		CreatedAt:      s.clock.Now().UTC(),
	}

	if err := s.repo.CreateOrder(order); err != nil {
		s.logger.Error("failed to store order", "error", err)
		return nil, errors.NewInternalError("failed to store order", err)
	}

	s.metrics.OrderCreated(order.Amount)
	s.logger.Info("order created", "order_id", order.ID, "amount", order.Amount, "receipt", order.Receipt)
	return order, nil
}

// CreatePayment stores a created payment and schedules its resolution.
// The returned snapshot is always in the created status.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*upi.Payment, error) {
	amount, err := req.Validate()
	if err != nil {
		s.logger.Warn("payment rejected", "error", err)
		return nil, err
	}

	if _, err := s.repo.GetOrder(req.OrderID); err != nil {
		s.logger.Warn("payment for unknown order", "order_id", req.OrderID)
		return nil, err
	}

	policy, policyName := s.policies.Lookup(req.VPA)

	payment := &upi.Payment{
		ID:        PaymentIDPrefix + s.newID(),
		Entity:    upi.EntityPayment,
		Amount:    amount,
		Currency:  req.currency(),
		OrderID:   req.OrderID,
		VPA:       req.VPA,
		Method:    req.method(),
		Status:    upi.PaymentStatusCreated,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.repo.CreatePayment(payment); err != nil {
		s.logger.Error("failed to store payment", "error", err, "order_id", req.OrderID)
		return nil, errors.NewInternalError("failed to store payment", err)
	}

	paymentID := payment.ID
	if !s.scheduler.Schedule(paymentID, policy.Delay, func() {
		s.resolve(paymentID, policy)
	}) {
		s.logger.Warn("resolution not scheduled", "payment_id", paymentID)
	}

	s.metrics.PaymentInitiated(policyName)
	s.logger.Info("payment initiated",
		"payment_id", paymentID,
		"order_id", payment.OrderID,
		"vpa", payment.VPA,
		"policy", policyName,
		"delay", policy.Delay)

	s.publish(ctx, events.NewPaymentEvent(events.EventTypePaymentInitiated, payment, policyName, payment.CreatedAt))

	return payment.Clone(), nil
}

func (s *Service) resolve(paymentID string, policy Policy) {
	res := upi.Resolution{
		Status: upi.PaymentStatusCaptured,
		At:     s.clock.Now().UTC(),
	}
	if !policy.Succeeds {
		res.Status = upi.PaymentStatusFailed
		res.ErrorCode = policy.FailureCode()
		res.ErrorDescription = DefaultErrorDescription
	}

	payment, err := s.repo.ResolvePayment(paymentID, res)
	if err != nil {
		switch {
		case errors.IsType(err, errors.ErrorTypeNotFound):
			s.logger.Debug("payment gone before resolution", "payment_id", paymentID)
		case errors.IsType(err, errors.ErrorTypeConflict):
			s.logger.Debug("payment already resolved", "payment_id", paymentID)
		default:
			s.logger.Error("failed to resolve payment", "payment_id", paymentID, "error", err)
		}
		return
	}

	s.metrics.PaymentResolved(payment.Status, res.ErrorCode, res.At.Sub(payment.CreatedAt))
	s.logger.Info("payment resolved",
		"payment_id", payment.ID,
		"status", payment.Status,
		"error_code", res.ErrorCode)

	s.publish(context.Background(), events.NewPaymentEvent(events.PaymentEventTypeFor(payment.Status), payment, "", res.At))
}

func (s *Service) GetPayment(ctx context.Context, id string) (*upi.Payment, error) {
	payment, err := s.repo.GetPayment(id)
	if err != nil {
		return nil, err
	}
	s.metrics.StatusChecked(payment.Status)
	return payment, nil
}

// PurgePayment removes a payment and cancels its pending resolution.
func (s *Service) PurgePayment(ctx context.Context, id string) error {
	cancelled := s.scheduler.Cancel(id)

	payment, err := s.repo.DeletePayment(id)
	if err != nil {
		return err
	}

	s.metrics.PaymentPurged(!payment.IsTerminal())
	s.logger.Info("payment purged", "payment_id", id, "status", payment.Status, "resolution_cancelled", cancelled)
	return nil
}

func (s *Service) ReceiveWebhook(ctx context.Context, webhook upi.WebhookEvent) upi.WebhookAck {
	now := s.clock.Now().UTC()

	s.metrics.WebhookReceived(webhook.Event)
	s.logger.Info("webhook received", "event", webhook.Event, "payload", string(webhook.Payload))

	s.publish(ctx, events.NewWebhookReceivedEvent(webhook, now))

	return upi.WebhookAck{Received: true, Timestamp: now}
}

func (s *Service) Health(ctx context.Context) (upi.Health, error) {
	orders, payments, err := s.repo.Counts()
	if err != nil {
		return upi.Health{}, errors.NewInternalError("failed to count records", err)
	}
	return upi.Health{
		Status:    upi.HealthStatusHealthy,
		Orders:    orders,
		Payments:  payments,
		Timestamp: s.clock.Now().UTC(),
	}, nil
}

// PendingResolutions is the number of payments still waiting on their timer.
func (s *Service) PendingResolutions() int {
	return s.scheduler.Pending()
}

// Shutdown cancels pending resolutions and waits for in-flight event handlers.
func (s *Service) Shutdown() {
	s.scheduler.Stop()
	s.bus.Wait()
	s.logger.Info("sandbox service stopped")
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
