package service

import (
	"context"
	"testing"
	"time"

	"groupbuy_backend/internal/domain/order/gateway"
	orderModel "groupbuy_backend/internal/domain/order/model"
	orderRepo "groupbuy_backend/internal/domain/order/repository"
	orderService "groupbuy_backend/internal/domain/order/service"
	"groupbuy_backend/internal/domain/returns/model"
	"groupbuy_backend/internal/domain/returns/repository"
	baseModel "groupbuy_backend/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- mocks ------------------------------------------------------------

type mockReturnRepo struct{ mock.Mock }

func (m *mockReturnRepo) Create(ret *model.Return) error {
	args := m.Called(ret)
	if args.Error(0) == nil {
		ret.ID = "ret-1"
		ret.Status = model.StatusPending
	}
	return args.Error(0)
}

func (m *mockReturnRepo) GetByID(id string) (*model.Return, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Return), args.Error(1)
}

func (m *mockReturnRepo) GetOpenByOrder(orderID string) (*model.Return, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Return), args.Error(1)
}

func (m *mockReturnRepo) ListByUser(userID string) ([]model.Return, error) {
	args := m.Called(userID)
	return args.Get(0).([]model.Return), args.Error(1)
}

func (m *mockReturnRepo) ListByStatus(status string, limit int) ([]model.Return, error) {
	args := m.Called(status, limit)
	return args.Get(0).([]model.Return), args.Error(1)
}

func (m *mockReturnRepo) UpdateStatus(id, fromStatus, toStatus, comment string) error {
	return m.Called(id, fromStatus, toStatus, comment).Error(0)
}

func (m *mockReturnRepo) SetRefundAmount(id string, amount float64) error {
	return m.Called(id, amount).Error(0)
}

type mockOrderService struct{ mock.Mock }

func (m *mockOrderService) Checkout(ctx context.Context, userID string, input orderService.CheckoutInput) (*orderService.CheckoutResult, error) {
	args := m.Called(ctx, userID, input)
	return args.Get(0).(*orderService.CheckoutResult), args.Error(1)
}

func (m *mockOrderService) RetryPayment(ctx context.Context, orderID, userID string) (*orderService.CheckoutResult, error) {
	args := m.Called(ctx, orderID, userID)
	return args.Get(0).(*orderService.CheckoutResult), args.Error(1)
}

func (m *mockOrderService) Get(orderID, userID string) (*orderService.OrderDetail, error) {
	args := m.Called(orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderService.OrderDetail), args.Error(1)
}

func (m *mockOrderService) ListMine(userID string, page, limit int) ([]orderRepo.OrderSummary, error) {
	args := m.Called(userID, page, limit)
	return args.Get(0).([]orderRepo.OrderSummary), args.Error(1)
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID, userID string) error {
	return m.Called(ctx, orderID, userID).Error(0)
}

func (m *mockOrderService) MarkShipped(orderID string) error {
	return m.Called(orderID).Error(0)
}

func (m *mockOrderService) MarkDelivered(orderID string) error {
	return m.Called(orderID).Error(0)
}

func (m *mockOrderService) Refund(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *mockOrderService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *mockOrderService) OnGroupCompleted(ctx context.Context, groupID string, finalPrice float64) error {
	return m.Called(ctx, groupID, finalPrice).Error(0)
}

func (m *mockOrderService) OnGroupFailed(ctx context.Context, groupID string, reason string) error {
	return m.Called(ctx, groupID, reason).Error(0)
}

func (m *mockOrderService) HasOrder(groupID, userID string) (bool, error) {
	args := m.Called(groupID, userID)
	return args.Bool(0), args.Error(1)
}

// --- fixtures ---------------------------------------------------------

func deliveredOrder(deliveredAgo time.Duration) *orderService.OrderDetail {
	return &orderService.OrderDetail{
		Order: &orderModel.Order{
			BaseModel: baseModel.BaseModel{ID: "order-1"},
			UserID:    "user-1",
			Status:    orderModel.OrderDelivered,
			Amount:    1000,
			History: orderModel.StatusHistory{
				{Status: orderModel.OrderPaid, At: time.Now().Add(-deliveredAgo - 48*time.Hour)},
				{Status: orderModel.OrderDelivered, At: time.Now().Add(-deliveredAgo)},
			},
		},
		Payment: &orderModel.Payment{
			BaseModel: baseModel.BaseModel{ID: "pay-1"},
			Status:    orderModel.PaymentCharged,
		},
	}
}

func newReturnService() (ReturnService, *mockReturnRepo, *mockOrderService) {
	repo := new(mockReturnRepo)
	orders := new(mockOrderService)
	return NewReturnService(repo, orders), repo, orders
}

// --- tests ------------------------------------------------------------

func TestCreateReturn(t *testing.T) {
	t.Run("delivered order within the window", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		orders.On("Get", "order-1", "user-1").Return(deliveredOrder(2*24*time.Hour), nil)
		repo.On("GetOpenByOrder", "order-1").Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", mock.AnythingOfType("*model.Return")).Return(nil)

		ret, err := svc.Create("user-1", "order-1", "wrong size", "ordered M, got S")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, ret.Status)
		assert.Equal(t, "order-1", ret.OrderID)
		assert.Equal(t, "ordered M, got S", ret.Description)
		assert.Nil(t, ret.RefundAmount)
	})

	t.Run("window expired", func(t *testing.T) {
		svc, _, orders := newReturnService()
		orders.On("Get", "order-1", "user-1").Return(deliveredOrder(20*24*time.Hour), nil)

		_, err := svc.Create("user-1", "order-1", "wrong size", "")
		assert.ErrorIs(t, err, ErrNotRefundable)
	})

	t.Run("undelivered order is not returnable", func(t *testing.T) {
		svc, _, orders := newReturnService()
		detail := deliveredOrder(time.Hour)
		detail.Order.Status = orderModel.OrderShipped
		orders.On("Get", "order-1", "user-1").Return(detail, nil)

		_, err := svc.Create("user-1", "order-1", "changed my mind", "")
		assert.ErrorIs(t, err, ErrNotRefundable)
	})

	t.Run("second open return is refused", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		orders.On("Get", "order-1", "user-1").Return(deliveredOrder(time.Hour), nil)
		repo.On("GetOpenByOrder", "order-1").Return(&model.Return{
			BaseModel: baseModel.BaseModel{ID: "ret-0"},
			Status:    model.StatusPending,
		}, nil)

		_, err := svc.Create("user-1", "order-1", "still broken", "")
		assert.ErrorIs(t, err, ErrAlreadyOpen)
	})
}

func TestModeration(t *testing.T) {
	pendingReturn := func() *model.Return {
		return &model.Return{
			BaseModel: baseModel.BaseModel{ID: "ret-1"},
			OrderID:   "order-1",
			UserID:    "user-1",
			Status:    model.StatusPending,
		}
	}

	t.Run("approve fixes the refund at the charged amount", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		repo.On("GetByID", "ret-1").Return(pendingReturn(), nil)
		orders.On("Get", "order-1", "user-1").Return(deliveredOrder(time.Hour), nil)
		repo.On("UpdateStatus", "ret-1", model.StatusPending, model.StatusApproved, "ok").Return(nil)
		repo.On("SetRefundAmount", "ret-1", 1000.0).Return(nil)

		require.NoError(t, svc.Approve("ret-1", "ok"))
		repo.AssertExpectations(t)
	})

	t.Run("reject", func(t *testing.T) {
		svc, repo, _ := newReturnService()
		repo.On("GetByID", "ret-1").Return(pendingReturn(), nil)
		repo.On("UpdateStatus", "ret-1", model.StatusPending, model.StatusRejected, "used item").Return(nil)

		require.NoError(t, svc.Reject("ret-1", "used item"))
	})

	t.Run("approve twice fails", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		approved := pendingReturn()
		approved.Status = model.StatusApproved
		repo.On("GetByID", "ret-1").Return(approved, nil)
		orders.On("Get", "order-1", "user-1").Return(deliveredOrder(time.Hour), nil)
		repo.On("UpdateStatus", "ret-1", model.StatusPending, model.StatusApproved, "").
			Return(repository.ErrStaleStatus)

		err := svc.Approve("ret-1", "")
		assert.ErrorIs(t, err, ErrBadTransition)
		repo.AssertNotCalled(t, "SetRefundAmount", mock.Anything, mock.Anything)
	})
}

func TestCompleteReturn(t *testing.T) {
	ctx := context.Background()

	awaiting := func() *model.Return {
		return &model.Return{
			BaseModel: baseModel.BaseModel{ID: "ret-1"},
			OrderID:   "order-1",
			UserID:    "user-1",
			Status:    model.StatusAwaitingItem,
		}
	}

	t.Run("completes and refunds", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		repo.On("GetByID", "ret-1").Return(awaiting(), nil)
		orders.On("Refund", ctx, "order-1").Return(nil)
		repo.On("UpdateStatus", "ret-1", model.StatusAwaitingItem, model.StatusCompleted, "").Return(nil)

		require.NoError(t, svc.Complete(ctx, "ret-1"))
		orders.AssertExpectations(t)
	})

	t.Run("failed refund keeps the return open", func(t *testing.T) {
		svc, repo, orders := newReturnService()
		repo.On("GetByID", "ret-1").Return(awaiting(), nil)
		orders.On("Refund", ctx, "order-1").Return(gateway.ErrUnavailable)

		err := svc.Complete(ctx, "ret-1")
		assert.ErrorIs(t, err, gateway.ErrUnavailable)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cannot complete before the item is back", func(t *testing.T) {
		svc, repo, _ := newReturnService()
		pending := awaiting()
		pending.Status = model.StatusApproved
		repo.On("GetByID", "ret-1").Return(pending, nil)

		err := svc.Complete(ctx, "ret-1")
		assert.ErrorIs(t, err, ErrBadTransition)
	})
}

func TestReturnTransitions(t *testing.T) {
	assert.True(t, model.CanTransition(model.StatusPending, model.StatusApproved))
	assert.True(t, model.CanTransition(model.StatusPending, model.StatusRejected))
	assert.True(t, model.CanTransition(model.StatusApproved, model.StatusAwaitingItem))
	assert.True(t, model.CanTransition(model.StatusAwaitingItem, model.StatusCompleted))
	assert.False(t, model.CanTransition(model.StatusRejected, model.StatusApproved))
	assert.False(t, model.CanTransition(model.StatusCompleted, model.StatusPending))
	assert.False(t, model.CanTransition(model.StatusPending, model.StatusCompleted))
}
