package repository

import (
	"encoding/json"
	"errors"
	"time"

	"groupbuy_backend/internal/domain/order/model"

	"gorm.io/gorm"
)

var (
	// ErrStaleStatus means a guarded status update matched no row: someone
	// else already moved the order (or payment) on. Callers treat it as a
	// concurrency signal, not a failure.
	ErrStaleStatus = errors.New("status changed concurrently")
	// ErrInvalidTransition means the requested from -> to pair is not in
	// the lifecycle table, regardless of what the row currently holds.
	ErrInvalidTransition = errors.New("illegal status transition")
)

type OrderRepository interface {
	Create(order *model.Order, payment *model.Payment) error
	GetByID(id string) (*model.Order, error)
	GetByGroupAndUser(groupID, userID string) (*model.Order, error)
	ListByGroup(groupID string) ([]model.Order, error)
	ListByUser(userID string) ([]model.Order, error)

	// UpdateStatus moves the order from exactly fromStatus, refusing pairs
	// outside the lifecycle table, and appends the history entry in the
	// same transaction.
	UpdateStatus(orderID, fromStatus, toStatus, note string) error
	// SetCaptured records the settled amount alongside the paid status.
	SetCaptured(orderID string, amount float64) error

	GetPayment(orderID string) (*model.Payment, error)
	GetPaymentByExternalID(externalID string) (*model.Payment, error)
	// AttachExternal stores the gateway payment id and confirmation URL.
	AttachExternal(paymentID, externalID, confirmationURL string) error
	UpdatePaymentStatus(paymentID, fromStatus, toStatus string) error
	SetRefund(paymentID, refundID string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *model.Order, payment *model.Payment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		order.Status = model.OrderPending
		order.History = model.StatusHistory{{Status: model.OrderPending, At: time.Now()}}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		payment.OrderID = order.ID
		payment.Status = model.PaymentPending
		return tx.Create(payment).Error
	})
}

func (r *orderRepository) GetByID(id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByGroupAndUser(groupID, userID string) (*model.Order, error) {
	var order model.Order
	if err := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByGroup(groupID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.Where("group_id = ?", groupID).Order("created_at").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListByUser(userID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) UpdateStatus(orderID, fromStatus, toStatus, note string) error {
	if !model.CanTransitionOrder(fromStatus, toStatus) {
		return ErrInvalidTransition
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", orderID, fromStatus).
			UpdateColumn("status", toStatus)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleStatus
		}
		return r.appendHistory(tx, orderID, toStatus, note)
	})
}

func (r *orderRepository) SetCaptured(orderID string, amount float64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", orderID, model.OrderFrozen).
			Updates(map[string]interface{}{
				"status": model.OrderPaid,
				"amount": amount,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleStatus
		}
		return r.appendHistory(tx, orderID, model.OrderPaid, "captured at final price")
	})
}

// appendHistory pushes one entry onto the jsonb trail.
func (r *orderRepository) appendHistory(tx *gorm.DB, orderID, status, note string) error {
	entry := model.StatusChange{Status: status, At: time.Now(), Note: note}
	return tx.Exec(
		`UPDATE orders SET history = COALESCE(history, '[]'::jsonb) || ?::jsonb WHERE id = ?`,
		toJSON(entry), orderID,
	).Error
}

func (r *orderRepository) GetPayment(orderID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *orderRepository) GetPaymentByExternalID(externalID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.Where("external_id = ?", externalID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *orderRepository) AttachExternal(paymentID, externalID, confirmationURL string) error {
	return r.db.Model(&model.Payment{}).Where("id = ?", paymentID).
		Updates(map[string]interface{}{
			"external_id":      externalID,
			"confirmation_url": confirmationURL,
		}).Error
}

func (r *orderRepository) UpdatePaymentStatus(paymentID, fromStatus, toStatus string) error {
	if !model.CanTransitionPayment(fromStatus, toStatus) {
		return ErrInvalidTransition
	}
	result := r.db.Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, fromStatus).
		UpdateColumn("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *orderRepository) SetRefund(paymentID, refundID string) error {
	return r.db.Model(&model.Payment{}).Where("id = ?", paymentID).
		UpdateColumn("refund_id", refundID).Error
}

func toJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
