package postgres

import (
	stderrors "errors"

	errors "github.com/frahmantamala/upi-sandbox/internal"
	"github.com/frahmantamala/upi-sandbox/internal/core/datamodel/upi"
	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"gorm.io/gorm"
)

// Repository implements sandbox.RepositoryAPI using GORM
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a gorm backed repository. Works with the postgres and sqlite dialects.
func NewRepository(db *gorm.DB) sandbox.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) CreateOrder(order *upi.Order) error {
	return r.db.Create(order).Error
}

func (r *Repository) GetOrder(id string) (*upi.Order, error) {
	var order upi.Order
	err := r.db.Where("id = ?", id).First(&order).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *Repository) CreatePayment(payment *upi.Payment) error {
	return r.db.Create(payment.Clone()).Error
}

func (r *Repository) GetPayment(id string) (*upi.Payment, error) {
	var payment upi.Payment
	err := r.db.Where("id = ?", id).First(&payment).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// ResolvePayment is a conditional update on status so a payment moves out of created at most once
func (r *Repository) ResolvePayment(id string, res upi.Resolution) (*upi.Payment, error) {
	var resolved *upi.Payment

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": res.Status}
		switch res.Status {
		case upi.PaymentStatusCaptured:
			updates["captured_at"] = res.At
		case upi.PaymentStatusFailed:
			updates["error_code"] = res.ErrorCode
			updates["error_description"] = res.ErrorDescription
		}

		result := tx.Model(&upi.Payment{}).
			Where("id = ? AND status = ?", id, upi.PaymentStatusCreated).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		var payment upi.Payment
		if err := tx.Where("id = ?", id).First(&payment).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrPaymentNotFound
			}
			return err
		}
		if result.RowsAffected == 0 {
			return errors.ErrPaymentAlreadyResolved
		}

		resolved = &payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *Repository) DeletePayment(id string) (*upi.Payment, error) {
	var deleted *upi.Payment

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var payment upi.Payment
		if err := tx.Where("id = ?", id).First(&payment).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrPaymentNotFound
			}
			return err
		}
		if err := tx.Delete(&upi.Payment{}, "id = ?", id).Error; err != nil {
			return err
		}
		deleted = &payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (r *Repository) Counts() (int64, int64, error) {
	var orders, payments int64
	if err := r.db.Model(&upi.Order{}).Count(&orders).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.Model(&upi.Payment{}).Count(&payments).Error; err != nil {
		return 0, 0, err
	}
	return orders, payments, nil
}
