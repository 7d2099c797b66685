package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	catalogService "groupbuy_backend/internal/domain/catalog/service"
	groupModel "groupbuy_backend/internal/domain/group/model"
	groupRepo "groupbuy_backend/internal/domain/group/repository"
	"groupbuy_backend/internal/domain/order/gateway"
	"groupbuy_backend/internal/domain/order/model"
	"groupbuy_backend/internal/domain/order/repository"
	userRepo "groupbuy_backend/internal/domain/user/repository"
	userService "groupbuy_backend/internal/domain/user/service"
	"groupbuy_backend/internal/pkg/config"
	"groupbuy_backend/internal/pkg/delivery"
	"groupbuy_backend/internal/pkg/notify"
	"groupbuy_backend/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotMember         = errors.New("user is not a member of the group")
	ErrGroupNotActive    = errors.New("group is not accepting orders")
	ErrOrderExists       = errors.New("a live order already exists for this membership")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrOrderStateInvalid = errors.New("operation not allowed in current order state")
	ErrAddressNotFound   = errors.New("delivery address not found")
	ErrBadSignature      = errors.New("invalid webhook signature")
)

// CheckoutInput is one member's purchase request.
type CheckoutInput struct {
	GroupID      string
	AddressID    string
	DeliveryType delivery.Type
	Quantity     int
}

// CheckoutResult returns the order plus where the client finishes the
// payment authorization.
type CheckoutResult struct {
	Order           *model.Order `json:"order"`
	ConfirmationURL string       `json:"confirmationUrl"`
}

// OrderDetail joins the order with its payment state.
type OrderDetail struct {
	Order   *model.Order   `json:"order"`
	Payment *model.Payment `json:"payment"`
}

// OrderService runs the checkout, settlement and fulfillment flows. It
// implements the group lifecycle's Settler contract.
type OrderService interface {
	Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutResult, error)
	RetryPayment(ctx context.Context, orderID, userID string) (*CheckoutResult, error)
	Get(orderID, userID string) (*OrderDetail, error)
	ListMine(userID string, page, limit int) ([]repository.OrderSummary, error)
	Cancel(ctx context.Context, orderID, userID string) error

	MarkShipped(orderID string) error
	MarkDelivered(orderID string) error
	// Refund charges back a delivered order's captured amount. Driven by
	// the return workflow.
	Refund(ctx context.Context, orderID string) error

	HandleWebhook(ctx context.Context, body []byte, signature string) error

	OnGroupCompleted(ctx context.Context, groupID string, finalPrice float64) error
	OnGroupFailed(ctx context.Context, groupID string, reason string) error
	HasOrder(groupID, userID string) (bool, error)
}

type orderService struct {
	repo        repository.OrderRepository
	projections repository.ProjectionRepository
	groups      groupRepo.GroupRepository
	users       userService.UserService
	gateway     gateway.Gateway
	quoter      delivery.Quoter
	rdb         *redis.Client
}

func NewOrderService(
	repo repository.OrderRepository,
	projections repository.ProjectionRepository,
	groups groupRepo.GroupRepository,
	users userService.UserService,
	gw gateway.Gateway,
	quoter delivery.Quoter,
	rdb *redis.Client,
) OrderService {
	return &orderService{
		repo:        repo,
		projections: projections,
		groups:      groups,
		users:       users,
		gateway:     gw,
		quoter:      quoter,
		rdb:         rdb,
	}
}

// checkoutGraceWindow keeps checkout open for a member whose group locked in
// while they were filling the form. The hold settles through the webhook's
// late-settlement path as soon as it confirms.
const checkoutGraceWindow = 5 * time.Minute

func (s *orderService) Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutResult, error) {
	group, err := s.groups.GetByID(input.GroupID)
	if err != nil {
		return nil, err
	}
	switch group.Status {
	case groupModel.StatusActive:
	case groupModel.StatusCompleted:
		if group.CompletedAt == nil || time.Since(*group.CompletedAt) > checkoutGraceWindow {
			return nil, ErrGroupNotActive
		}
	default:
		return nil, ErrGroupNotActive
	}

	isMember, err := s.groups.IsMember(input.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	if existing, err := s.repo.GetByGroupAndUser(input.GroupID, userID); err == nil {
		if existing.Status != model.OrderCancelled && existing.Status != model.OrderRefunded {
			return nil, ErrOrderExists
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	address, err := s.users.GetAddress(input.AddressID)
	if err != nil {
		return nil, ErrAddressNotFound
	}
	if address.UserID != userID {
		return nil, ErrAddressNotFound
	}

	if !input.DeliveryType.Valid() {
		return nil, ErrOrderStateInvalid
	}
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	quote, err := s.quoter.Quote(ctx, address.City, input.DeliveryType)
	if err != nil {
		return nil, err
	}

	// The hold freezes the price as it stands now. If more people join and
	// a deeper tier unlocks, the capture charges less than the hold; the
	// price never moves the other way for this member. A group that already
	// completed sells at its locked final price.
	unitPrice := catalogService.ResolvePrice(group.PriceTiers, group.CurrentCount, group.BasePrice)
	if group.FinalPrice != nil {
		unitPrice = *group.FinalPrice
	}
	holdAmount := unitPrice*float64(quantity) + quote.Cost

	order := &model.Order{
		UserID:       userID,
		GroupID:      input.GroupID,
		Quantity:     quantity,
		HoldAmount:   holdAmount,
		DeliveryCost: quote.Cost,
		AddressID:    input.AddressID,
		DeliveryType: string(input.DeliveryType),
	}
	payment := &model.Payment{Amount: holdAmount}
	if err := s.repo.Create(order, payment); err != nil {
		return nil, err
	}

	notify.Publish(notify.Event{
		Type:   notify.EventOrderCreated,
		UserID: userID,
		Data:   map[string]string{"order_id": order.ID, "group_id": group.ID},
	})

	return s.placeHold(ctx, order, payment)
}

// placeHold creates the gateway payment with capture disabled. The order id
// doubles as the idempotency key, so a retried checkout cannot double-hold.
func (s *orderService) placeHold(ctx context.Context, order *model.Order, payment *model.Payment) (*CheckoutResult, error) {
	result, err := s.gateway.Hold(ctx, gateway.HoldRequest{
		OrderID:     order.ID,
		Amount:      order.HoldAmount,
		Description: "Group buy order " + order.ID,
		ReturnURL:   config.GlobalConfig.YooKassa.ReturnURL,
	}, order.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			// Final decision: the order dies with the payment.
			if uerr := s.repo.UpdatePaymentStatus(payment.ID, model.PaymentPending, model.PaymentFailed); uerr != nil && !errors.Is(uerr, repository.ErrStaleStatus) {
				logger.Log.Error("Failed to mark payment failed", zap.String("payment_id", payment.ID), zap.Error(uerr))
			}
			if uerr := s.repo.UpdateStatus(order.ID, model.OrderPending, model.OrderCancelled, "payment rejected"); uerr != nil && !errors.Is(uerr, repository.ErrStaleStatus) {
				logger.Log.Error("Failed to cancel order after rejection", zap.String("order_id", order.ID), zap.Error(uerr))
			}
		}
		// Transient gateway failures leave the order pending; the client
		// retries through /orders/:id/pay.
		return nil, err
	}

	if err := s.repo.AttachExternal(payment.ID, result.PaymentID, result.ConfirmationURL); err != nil {
		return nil, err
	}
	return &CheckoutResult{Order: order, ConfirmationURL: result.ConfirmationURL}, nil
}

func (s *orderService) RetryPayment(ctx context.Context, orderID, userID string) (*CheckoutResult, error) {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	if order.Status != model.OrderPending {
		return nil, ErrOrderStateInvalid
	}
	payment, err := s.repo.GetPayment(orderID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentPending {
		return nil, ErrOrderStateInvalid
	}
	return s.placeHold(ctx, order, payment)
}

func (s *orderService) Get(orderID, userID string) (*OrderDetail, error) {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	payment, err := s.repo.GetPayment(orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Payment: payment}, nil
}

func (s *orderService) ListMine(userID string, page, limit int) ([]repository.OrderSummary, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.projections.OrderSummaries(userID, limit, (page-1)*limit)
}

func (s *orderService) Cancel(ctx context.Context, orderID, userID string) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOwner
	}
	if order.Status != model.OrderPending && order.Status != model.OrderFrozen {
		return ErrOrderStateInvalid
	}

	payment, err := s.repo.GetPayment(orderID)
	if err != nil {
		return err
	}
	if payment.Status == model.PaymentFrozen && payment.ExternalID != "" {
		if err := s.gateway.Void(ctx, payment.ExternalID, orderID+":void"); err != nil {
			return err
		}
	}

	if err := s.repo.UpdatePaymentStatus(payment.ID, payment.Status, model.PaymentCancelled); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	if err := s.repo.UpdateStatus(orderID, order.Status, model.OrderCancelled, "cancelled by customer"); err != nil {
		return err
	}

	notify.Publish(notify.Event{
		Type:   notify.EventOrderCancelled,
		UserID: userID,
		Data:   map[string]string{"order_id": orderID},
	})
	return nil
}

func (s *orderService) MarkShipped(orderID string) error {
	if err := s.repo.UpdateStatus(orderID, model.OrderProcessing, model.OrderShipped, ""); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return ErrOrderStateInvalid
		}
		return err
	}
	order, err := s.repo.GetByID(orderID)
	if err == nil {
		notify.Publish(notify.Event{
			Type:   notify.EventOrderShipped,
			UserID: order.UserID,
			Data:   map[string]string{"order_id": orderID},
		})
	}
	return nil
}

func (s *orderService) MarkDelivered(orderID string) error {
	if err := s.repo.UpdateStatus(orderID, model.OrderShipped, model.OrderDelivered, ""); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return ErrOrderStateInvalid
		}
		return err
	}
	order, err := s.repo.GetByID(orderID)
	if err == nil {
		notify.Publish(notify.Event{
			Type:   notify.EventOrderDelivered,
			UserID: order.UserID,
			Data:   map[string]string{"order_id": orderID},
		})
	}
	return nil
}

func (s *orderService) Refund(ctx context.Context, orderID string) error {
	order, err := s.repo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderDelivered {
		return ErrOrderStateInvalid
	}
	payment, err := s.repo.GetPayment(orderID)
	if err != nil {
		return err
	}
	if payment.Status != model.PaymentCharged {
		return ErrOrderStateInvalid
	}

	refundID, err := s.gateway.Refund(ctx, payment.ExternalID, order.Amount, orderID+":refund")
	if err != nil {
		return err
	}
	if err := s.repo.SetRefund(payment.ID, refundID); err != nil {
		return err
	}
	if err := s.repo.UpdatePaymentStatus(payment.ID, model.PaymentCharged, model.PaymentRefunded); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	return s.repo.UpdateStatus(orderID, model.OrderDelivered, model.OrderRefunded, "refund issued")
}

// --- group settlement -------------------------------------------------

func (s *orderService) OnGroupCompleted(ctx context.Context, groupID string, finalPrice float64) error {
	rows, err := s.projections.GroupSettlementRows(groupID)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		// One stuck order must not block the rest of the settlement.
		if err := s.settleOrder(ctx, row, finalPrice); err != nil {
			logger.Log.Error("Order settlement failed",
				zap.String("order_id", row.OrderID),
				zap.String("group_id", groupID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *orderService) settleOrder(ctx context.Context, row repository.GroupSettlementRow, finalPrice float64) error {
	switch row.OrderStatus {
	case model.OrderFrozen:
		// Capture at the settled tier price; never above the hold.
		captureAmount := finalPrice*float64(row.Quantity) + row.DeliveryCost
		if captureAmount > row.HoldAmount {
			captureAmount = row.HoldAmount
		}
		if err := s.gateway.Capture(ctx, row.PaymentExternalID, captureAmount, row.OrderID+":capture"); err != nil {
			if errors.Is(err, gateway.ErrRejected) {
				return s.failOrder(ctx, row, "capture rejected")
			}
			return err
		}
		if err := s.repo.UpdatePaymentStatus(row.PaymentID, model.PaymentFrozen, model.PaymentCharged); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		if err := s.repo.SetCaptured(row.OrderID, captureAmount); err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return nil // another worker got here first
			}
			return err
		}
		if err := s.repo.UpdateStatus(row.OrderID, model.OrderPaid, model.OrderProcessing, "preparing shipment"); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}

		if err := s.users.RecordStats(row.UserID, userRepo.StatsDelta{Orders: 1}); err != nil {
			logger.Log.Warn("Failed to record order stats", zap.String("user_id", row.UserID), zap.Error(err))
		}
		notify.Publish(notify.Event{
			Type:   notify.EventOrderPaid,
			UserID: row.UserID,
			Data: map[string]string{
				"order_id": row.OrderID,
				"amount":   strconv.FormatFloat(captureAmount, 'f', 2, 64),
			},
		})
		return nil

	case model.OrderPending:
		// The hold never confirmed; the member is not charged.
		return s.failOrder(ctx, row, "payment not confirmed before settlement")

	default:
		return nil
	}
}

func (s *orderService) OnGroupFailed(ctx context.Context, groupID string, reason string) error {
	rows, err := s.projections.GroupSettlementRows(groupID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if row.OrderStatus != model.OrderPending && row.OrderStatus != model.OrderFrozen {
			continue
		}
		if err := s.failOrder(ctx, row, "group "+reason); err != nil {
			logger.Log.Error("Hold release failed",
				zap.String("order_id", row.OrderID),
				zap.String("group_id", groupID),
				zap.Error(err))
		}
	}
	return nil
}

// failOrder releases the hold (if any) and cancels the order.
func (s *orderService) failOrder(ctx context.Context, row repository.GroupSettlementRow, note string) error {
	if row.PaymentStatus == model.PaymentFrozen && row.PaymentExternalID != "" {
		if err := s.gateway.Void(ctx, row.PaymentExternalID, row.OrderID+":void"); err != nil {
			return err
		}
	}
	if err := s.repo.UpdatePaymentStatus(row.PaymentID, row.PaymentStatus, model.PaymentCancelled); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	if err := s.repo.UpdateStatus(row.OrderID, row.OrderStatus, model.OrderCancelled, note); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	notify.Publish(notify.Event{
		Type:   notify.EventOrderCancelled,
		UserID: row.UserID,
		Data:   map[string]string{"order_id": row.OrderID, "reason": note},
	})
	return nil
}

func (s *orderService) HasOrder(groupID, userID string) (bool, error) {
	order, err := s.repo.GetByGroupAndUser(groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	live := order.Status != model.OrderCancelled && order.Status != model.OrderRefunded
	return live, nil
}

// --- webhooks ---------------------------------------------------------

func (s *orderService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !gateway.VerifySignature(config.GlobalConfig.YooKassa.WebhookSecret, body, signature) {
		return ErrBadSignature
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}

	// A replayed notification is acknowledged without side effects.
	seen, err := s.seenWebhook(ctx, event.Event+":"+event.Object.ID)
	if err != nil {
		logger.Log.Warn("Webhook dedupe unavailable", zap.Error(err))
	} else if seen {
		return nil
	}

	switch event.Event {
	case gateway.EventWaitingForCapture:
		return s.onHoldConfirmed(ctx, event.Object.ID)
	case gateway.EventPaymentSucceeded:
		return s.onPaymentSucceeded(event.Object.ID, event.Object.Amount.Value)
	case gateway.EventPaymentCanceled:
		return s.onPaymentCanceled(event.Object.ID)
	case gateway.EventRefundSucceeded:
		return s.onRefundSucceeded(event.Object.PaymentID)
	default:
		logger.Log.Info("Ignoring unknown webhook event", zap.String("event", event.Event))
		return nil
	}
}

func (s *orderService) seenWebhook(ctx context.Context, key string) (bool, error) {
	if s.rdb == nil {
		return false, nil
	}
	fresh, err := s.rdb.SetNX(ctx, "webhook:"+key, 1, 24*time.Hour).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func (s *orderService) onHoldConfirmed(ctx context.Context, externalID string) error {
	payment, err := s.repo.GetPaymentByExternalID(externalID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePaymentStatus(payment.ID, model.PaymentPending, model.PaymentFrozen); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	if err := s.repo.UpdateStatus(payment.OrderID, model.OrderPending, model.OrderFrozen, "hold confirmed"); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}

	// If the group resolved while the customer was authorizing, settle
	// this order right away instead of stranding the hold.
	order, err := s.repo.GetByID(payment.OrderID)
	if err != nil {
		return err
	}
	group, err := s.groups.GetByID(order.GroupID)
	if err != nil {
		return err
	}
	switch group.Status {
	case groupModel.StatusCompleted:
		row := repository.GroupSettlementRow{
			OrderID:           order.ID,
			UserID:            order.UserID,
			OrderStatus:       model.OrderFrozen,
			Quantity:          order.Quantity,
			HoldAmount:        order.HoldAmount,
			DeliveryCost:      order.DeliveryCost,
			PaymentID:         payment.ID,
			PaymentExternalID: externalID,
			PaymentStatus:     model.PaymentFrozen,
		}
		// The tier snapshot reproduces the unit price even if the stored
		// final price is somehow missing.
		finalPrice := catalogService.ResolvePrice(group.PriceTiers, group.CurrentCount, group.BasePrice)
		if group.FinalPrice != nil {
			finalPrice = *group.FinalPrice
		}
		return s.settleOrder(ctx, row, finalPrice)
	case groupModel.StatusFailed, groupModel.StatusCancelled:
		return s.failOrder(ctx, repository.GroupSettlementRow{
			OrderID:           order.ID,
			UserID:            order.UserID,
			OrderStatus:       model.OrderFrozen,
			PaymentID:         payment.ID,
			PaymentExternalID: externalID,
			PaymentStatus:     model.PaymentFrozen,
		}, "group resolved before hold confirmation")
	}
	return nil
}

func (s *orderService) onPaymentSucceeded(externalID, amountValue string) error {
	payment, err := s.repo.GetPaymentByExternalID(externalID)
	if err != nil {
		return err
	}
	// The synchronous capture path usually lands first; the webhook is the
	// backstop for captures confirmed out of band.
	if err := s.repo.UpdatePaymentStatus(payment.ID, model.PaymentFrozen, model.PaymentCharged); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	amount, perr := strconv.ParseFloat(amountValue, 64)
	if perr != nil || amount <= 0 {
		// The notification carried no usable amount; trust the local record.
		logger.Log.Warn("Unparseable webhook amount",
			zap.String("payment_id", payment.ID), zap.String("value", amountValue))
		amount = payment.Amount
	}
	if err := s.repo.SetCaptured(payment.OrderID, amount); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	return nil
}

func (s *orderService) onPaymentCanceled(externalID string) error {
	payment, err := s.repo.GetPaymentByExternalID(externalID)
	if err != nil {
		return err
	}
	// A captured or already-terminal payment cannot be cancelled by a
	// gateway notification; acknowledge and keep the local state.
	if payment.Status != model.PaymentPending && payment.Status != model.PaymentFrozen {
		return nil
	}
	if err := s.repo.UpdatePaymentStatus(payment.ID, payment.Status, model.PaymentCancelled); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	order, err := s.repo.GetByID(payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == model.OrderPending || order.Status == model.OrderFrozen {
		if err := s.repo.UpdateStatus(order.ID, order.Status, model.OrderCancelled, "payment cancelled by gateway"); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		notify.Publish(notify.Event{
			Type:   notify.EventOrderCancelled,
			UserID: order.UserID,
			Data:   map[string]string{"order_id": order.ID},
		})
	}
	return nil
}

func (s *orderService) onRefundSucceeded(paymentExternalID string) error {
	payment, err := s.repo.GetPaymentByExternalID(paymentExternalID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePaymentStatus(payment.ID, model.PaymentCharged, model.PaymentRefunded); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}
	if err := s.repo.UpdateStatus(payment.OrderID, model.OrderDelivered, model.OrderRefunded, "refund confirmed"); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
		return err
	}
	return nil
}
