package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	groupRepo "groupbuy_backend/internal/domain/group/repository"
	"groupbuy_backend/internal/domain/order/gateway"
	"groupbuy_backend/internal/domain/order/service"
	"groupbuy_backend/internal/pkg/delivery"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/pkg/logger"
	"groupbuy_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderHandler struct {
	service service.OrderService
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type CheckoutInput struct {
	GroupID      string `json:"group_id" binding:"required,uuid"`
	AddressID    string `json:"address_id" binding:"required,uuid"`
	DeliveryType string `json:"delivery_type" binding:"required,oneof=courier pickup post"`
	Quantity     int    `json:"quantity" binding:"omitempty,min=1,max=10"`
}

// Checkout creates the order and places the payment hold.
// @Summary Checkout
// @Tags Order
// @Router /orders [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), middleware.UserID(c), service.CheckoutInput{
		GroupID:      input.GroupID,
		AddressID:    input.AddressID,
		DeliveryType: delivery.Type(input.DeliveryType),
		Quantity:     input.Quantity,
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *OrderHandler) writeCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.Error(c, http.StatusNotFound, response.ErrGroupNotFound, "Group not found")
	case errors.Is(err, service.ErrGroupNotActive), errors.Is(err, groupRepo.ErrGroupNotActive):
		response.Fail(c, response.ErrGroupNotActive, "Group is not accepting orders")
	case errors.Is(err, service.ErrNotMember):
		response.Fail(c, response.ErrNotAMember, "Join the group before checking out")
	case errors.Is(err, service.ErrOrderExists):
		response.Fail(c, response.ErrOrderExists, "Order already exists for this group")
	case errors.Is(err, service.ErrAddressNotFound):
		response.Error(c, http.StatusBadRequest, response.ErrAddressNotFound, "Delivery address not found")
	case errors.Is(err, gateway.ErrRejected):
		response.Fail(c, response.ErrPaymentRejected, "Payment was rejected")
	case errors.Is(err, gateway.ErrUnavailable):
		// Transient: the order stays pending, the client retries the hold.
		response.Fail(c, response.ErrPaymentHoldFailed, "Payment gateway unavailable, try again")
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
	}
}

// RetryPayment re-attempts the hold for a pending order.
// @Summary Retry payment
// @Tags Order
// @Router /orders/{id}/pay [post]
func (h *OrderHandler) RetryPayment(c *gin.Context) {
	result, err := h.service.RetryPayment(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Not your order")
		case errors.Is(err, service.ErrOrderStateInvalid):
			response.Fail(c, response.ErrOrderStateInvalid, "Order is not awaiting payment")
		default:
			h.writeCheckoutError(c, err)
		}
		return
	}
	response.Success(c, result)
}

// GetOrder returns the order with its payment state.
// @Summary Get order
// @Tags Order
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	detail, err := h.service.Get(c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Not your order")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, detail)
}

// ListMyOrders returns the caller's order history.
// @Summary List my orders
// @Tags Order
// @Router /my/orders [get]
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	orders, err := h.service.ListMine(middleware.UserID(c), page, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, orders)
}

// CancelOrder cancels a not-yet-captured order and releases the hold.
// @Summary Cancel order
// @Tags Order
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	err := h.service.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Not your order")
		case errors.Is(err, service.ErrOrderStateInvalid):
			response.Fail(c, response.ErrOrderStateInvalid, "Order can no longer be cancelled")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// MarkShipped moves a processing order to shipped. Admin only.
// @Summary Mark shipped
// @Tags Order
// @Router /orders/{id}/ship [post]
func (h *OrderHandler) MarkShipped(c *gin.Context) {
	h.fulfillment(c, h.service.MarkShipped)
}

// MarkDelivered moves a shipped order to delivered. Admin only.
// @Summary Mark delivered
// @Tags Order
// @Router /orders/{id}/deliver [post]
func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	h.fulfillment(c, h.service.MarkDelivered)
}

func (h *OrderHandler) fulfillment(c *gin.Context, op func(orderID string) error) {
	if err := op(c.Param("id")); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrOrderStateInvalid):
			response.Fail(c, response.ErrOrderStateInvalid, "Order is not in the right state")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// Webhook receives gateway notifications. The provider expects a 200 on
// anything it should not retry.
// @Summary Payment webhook
// @Tags Order
// @Router /webhooks/payment [post]
func (h *OrderHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	err = h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader("X-Webhook-Signature"))
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, service.ErrBadSignature):
		c.Status(http.StatusForbidden)
	default:
		// A 5xx makes the provider redeliver; the dedupe key absorbs the
		// replay once the transient failure clears.
		logger.Log.Error("Webhook processing failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}
