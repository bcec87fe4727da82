package memory

import (
	"sync"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
)

// Repository keeps orders and payments in process memory.
type Repository struct {
	mu       sync.RWMutex
	orders   map[string]upi.Order
	payments map[string]*upi.Payment
}

func NewRepository() sandbox.RepositoryAPI {
	return &Repository{
		orders:   make(map[string]upi.Order),
		payments: make(map[string]*upi.Payment),
	}
}

func (r *Repository) CreateOrder(order *upi.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = *order
	return nil
}

func (r *Repository) GetOrder(id string) (*upi.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.ErrOrderNotFound
	}
	return &order, nil
}

func (r *Repository) CreatePayment(payment *upi.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.payments[payment.ID] = payment.Clone()
	return nil
}

func (r *Repository) GetPayment(id string) (*upi.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	return payment.Clone(), nil
}

func (r *Repository) ResolvePayment(id string, res upi.Resolution) (*upi.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	if payment.IsTerminal() {
		return nil, errors.ErrPaymentAlreadyResolved
	}

	payment.Apply(res)
	return payment.Clone(), nil
}

func (r *Repository) DeletePayment(id string) (*upi.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[id]
	if !ok {
		return nil, errors.ErrPaymentNotFound
	}
	delete(r.payments, id)
	return payment, nil
}

func (r *Repository) Counts() (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.orders)), int64(len(r.payments)), nil
}
