package repository

import (
	"errors"

	"groupbuy_backend/internal/domain/returns/model"

	"gorm.io/gorm"
)

var (
	// ErrStaleStatus means the guarded transition matched no row: the
	// return moved on concurrently.
	ErrStaleStatus = errors.New("return status changed concurrently")
	// ErrInvalidTransition means the from -> to pair is not in the
	// workflow table at all.
	ErrInvalidTransition = errors.New("illegal return status transition")
)

type ReturnRepository interface {
	Create(ret *model.Return) error
	GetByID(id string) (*model.Return, error)
	GetOpenByOrder(orderID string) (*model.Return, error)
	ListByUser(userID string) ([]model.Return, error)
	ListByStatus(status string, limit int) ([]model.Return, error)
	// UpdateStatus moves the return from exactly fromStatus, refusing
	// pairs outside the workflow table.
	UpdateStatus(id, fromStatus, toStatus, comment string) error
	// SetRefundAmount records how much the completed return pays back.
	SetRefundAmount(id string, amount float64) error
}

type returnRepository struct {
	db *gorm.DB
}

func NewReturnRepository(db *gorm.DB) ReturnRepository {
	return &returnRepository{db: db}
}

func (r *returnRepository) Create(ret *model.Return) error {
	ret.Status = model.StatusPending
	return r.db.Create(ret).Error
}

func (r *returnRepository) GetByID(id string) (*model.Return, error) {
	var ret model.Return
	if err := r.db.Where("id = ?", id).First(&ret).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *returnRepository) GetOpenByOrder(orderID string) (*model.Return, error) {
	var ret model.Return
	err := r.db.
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]string{model.StatusRejected, model.StatusCompleted}).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *returnRepository) ListByUser(userID string) ([]model.Return, error) {
	var returns []model.Return
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&returns).Error
	return returns, err
}

func (r *returnRepository) ListByStatus(status string, limit int) ([]model.Return, error) {
	var returns []model.Return
	query := r.db.Order("created_at")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&returns).Error
	return returns, err
}

func (r *returnRepository) UpdateStatus(id, fromStatus, toStatus, comment string) error {
	if !model.CanTransition(fromStatus, toStatus) {
		return ErrInvalidTransition
	}
	updates := map[string]interface{}{"status": toStatus}
	if comment != "" {
		updates["admin_comment"] = comment
	}
	result := r.db.Model(&model.Return{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *returnRepository) SetRefundAmount(id string, amount float64) error {
	return r.db.Model(&model.Return{}).Where("id = ?", id).
		UpdateColumn("refund_amount", amount).Error
}
