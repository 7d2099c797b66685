package service

import (
	"context"
	"errors"
	"time"

	orderModel "groupbuy_backend/internal/domain/order/model"
	orderService "groupbuy_backend/internal/domain/order/service"
	"groupbuy_backend/internal/domain/returns/model"
	"groupbuy_backend/internal/domain/returns/repository"
	"groupbuy_backend/internal/pkg/notify"

	"gorm.io/gorm"
)

var (
	ErrNotRefundable = errors.New("order is not eligible for a return")
	ErrAlreadyOpen   = errors.New("order already has an open return")
	ErrNotOwner      = errors.New("order belongs to another user")
	ErrBadTransition = errors.New("return is not in the right state")
)

// returnWindow is how long after delivery a return can be opened.
const returnWindow = 14 * 24 * time.Hour

// ReturnService runs the refund workflow: customer request, moderation,
// item receipt, money back.
type ReturnService interface {
	Create(userID, orderID, reason, description string) (*model.Return, error)
	Get(id, userID string) (*model.Return, error)
	ListMine(userID string) ([]model.Return, error)
	ListPending(limit int) ([]model.Return, error)

	Approve(id, comment string) error
	Reject(id, comment string) error
	// MarkAwaitingItem acknowledges the approved return is in transit back.
	MarkAwaitingItem(id string) error
	// Complete confirms the item arrived and issues the gateway refund.
	Complete(ctx context.Context, id string) error
}

type returnService struct {
	repo   repository.ReturnRepository
	orders orderService.OrderService
}

func NewReturnService(repo repository.ReturnRepository, orders orderService.OrderService) ReturnService {
	return &returnService{repo: repo, orders: orders}
}

func (s *returnService) Create(userID, orderID, reason, description string) (*model.Return, error) {
	detail, err := s.orders.Get(orderID, userID)
	if err != nil {
		if errors.Is(err, orderService.ErrNotOwner) {
			return nil, ErrNotOwner
		}
		return nil, err
	}
	if detail.Order.Status != orderModel.OrderDelivered {
		return nil, ErrNotRefundable
	}
	if deliveredAt, ok := deliveredTime(detail.Order); ok {
		if time.Since(deliveredAt) > returnWindow {
			return nil, ErrNotRefundable
		}
	}

	if _, err := s.repo.GetOpenByOrder(orderID); err == nil {
		return nil, ErrAlreadyOpen
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ret := &model.Return{
		OrderID:     orderID,
		UserID:      userID,
		Reason:      reason,
		Description: description,
	}
	if err := s.repo.Create(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// deliveredTime finds the delivery timestamp on the order's audit trail.
func deliveredTime(order *orderModel.Order) (time.Time, bool) {
	for i := len(order.History) - 1; i >= 0; i-- {
		if order.History[i].Status == orderModel.OrderDelivered {
			return order.History[i].At, true
		}
	}
	return time.Time{}, false
}

func (s *returnService) Get(id, userID string) (*model.Return, error) {
	ret, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if ret.UserID != userID {
		return nil, ErrNotOwner
	}
	return ret, nil
}

func (s *returnService) ListMine(userID string) ([]model.Return, error) {
	return s.repo.ListByUser(userID)
}

func (s *returnService) ListPending(limit int) ([]model.Return, error) {
	return s.repo.ListByStatus(model.StatusPending, limit)
}

func (s *returnService) Approve(id, comment string) error {
	ret, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	detail, err := s.orders.Get(ret.OrderID, ret.UserID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(id, model.StatusPending, model.StatusApproved, comment); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) || errors.Is(err, repository.ErrInvalidTransition) {
			return ErrBadTransition
		}
		return err
	}
	// Approval fixes the payout at everything the member was charged.
	if err := s.repo.SetRefundAmount(id, detail.Order.Amount); err != nil {
		return err
	}

	notify.Publish(notify.Event{
		Type:   notify.EventReturnApproved,
		UserID: ret.UserID,
		Data:   map[string]string{"return_id": id, "order_id": ret.OrderID},
	})
	return nil
}

func (s *returnService) Reject(id, comment string) error {
	_, err := s.transition(id, model.StatusPending, model.StatusRejected, comment)
	return err
}

func (s *returnService) MarkAwaitingItem(id string) error {
	_, err := s.transition(id, model.StatusApproved, model.StatusAwaitingItem, "")
	return err
}

func (s *returnService) Complete(ctx context.Context, id string) error {
	ret, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if ret.Status != model.StatusAwaitingItem {
		return ErrBadTransition
	}

	// Money first: if the gateway refuses, the return stays open and the
	// operator retries.
	if err := s.orders.Refund(ctx, ret.OrderID); err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(id, model.StatusAwaitingItem, model.StatusCompleted, ""); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	notify.Publish(notify.Event{
		Type:   notify.EventReturnCompleted,
		UserID: ret.UserID,
		Data:   map[string]string{"return_id": id, "order_id": ret.OrderID},
	})
	return nil
}

func (s *returnService) transition(id, from, to, comment string) (*model.Return, error) {
	ret, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(id, from, to, comment); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) || errors.Is(err, repository.ErrInvalidTransition) {
			return nil, ErrBadTransition
		}
		return nil, err
	}
	return ret, nil
}
