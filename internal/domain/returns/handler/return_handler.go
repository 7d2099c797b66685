package handler

import (
	"errors"
	"net/http"

	"groupbuy_backend/internal/domain/order/gateway"
	"groupbuy_backend/internal/domain/returns/service"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReturnHandler struct {
	service service.ReturnService
}

func NewReturnHandler(s service.ReturnService) *ReturnHandler {
	return &ReturnHandler{service: s}
}

type CreateReturnInput struct {
	OrderID     string `json:"order_id" binding:"required,uuid"`
	Reason      string `json:"reason" binding:"required,min=5,max=500"`
	Description string `json:"description" binding:"max=1000"`
}

// CreateReturn opens a refund request for a delivered order.
// @Summary Create return
// @Tags Return
// @Router /returns [post]
func (h *ReturnHandler) CreateReturn(c *gin.Context) {
	var input CreateReturnInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	ret, err := h.service.Create(middleware.UserID(c), input.OrderID, input.Reason, input.Description)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Not your order")
		case errors.Is(err, service.ErrNotRefundable):
			response.Fail(c, response.ErrReturnNotAllowed, "Order is not eligible for a return")
		case errors.Is(err, service.ErrAlreadyOpen):
			response.Fail(c, response.ErrReturnAlreadyOpen, "Order already has an open return")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, ret)
}

// GetReturn returns one request of the caller.
// @Summary Get return
// @Tags Return
// @Router /returns/{id} [get]
func (h *ReturnHandler) GetReturn(c *gin.Context) {
	ret, err := h.service.Get(c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrReturnNotFound, "Return not found")
		case errors.Is(err, service.ErrNotOwner):
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Not your return")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, ret)
}

// ListMyReturns returns the caller's return history.
// @Summary List my returns
// @Tags Return
// @Router /my/returns [get]
func (h *ReturnHandler) ListMyReturns(c *gin.Context) {
	returns, err := h.service.ListMine(middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, returns)
}

// ListPendingReturns is the moderation queue. Admin only.
// @Summary List pending returns
// @Tags Return
// @Router /returns [get]
func (h *ReturnHandler) ListPendingReturns(c *gin.Context) {
	returns, err := h.service.ListPending(100)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, returns)
}

type ModerateInput struct {
	Comment string `json:"comment" binding:"max=500"`
}

// ApproveReturn approves a pending return. Admin only.
// @Summary Approve return
// @Tags Return
// @Router /returns/{id}/approve [post]
func (h *ReturnHandler) ApproveReturn(c *gin.Context) {
	var input ModerateInput
	_ = c.ShouldBindJSON(&input)
	h.moderate(c, func(id string) error {
		return h.service.Approve(id, input.Comment)
	})
}

// RejectReturn rejects a pending return. Admin only.
// @Summary Reject return
// @Tags Return
// @Router /returns/{id}/reject [post]
func (h *ReturnHandler) RejectReturn(c *gin.Context) {
	var input ModerateInput
	_ = c.ShouldBindJSON(&input)
	h.moderate(c, func(id string) error {
		return h.service.Reject(id, input.Comment)
	})
}

// MarkAwaitingItem records that the item is on its way back. Admin only.
// @Summary Mark awaiting item
// @Tags Return
// @Router /returns/{id}/awaiting [post]
func (h *ReturnHandler) MarkAwaitingItem(c *gin.Context) {
	h.moderate(c, h.service.MarkAwaitingItem)
}

// CompleteReturn confirms receipt and issues the refund. Admin only.
// @Summary Complete return
// @Tags Return
// @Router /returns/{id}/complete [post]
func (h *ReturnHandler) CompleteReturn(c *gin.Context) {
	h.moderate(c, func(id string) error {
		return h.service.Complete(c.Request.Context(), id)
	})
}

func (h *ReturnHandler) moderate(c *gin.Context, op func(id string) error) {
	if err := op(c.Param("id")); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrReturnNotFound, "Return not found")
		case errors.Is(err, service.ErrBadTransition):
			response.Fail(c, response.ErrReturnStateInvalid, "Return is not in the right state")
		case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrRejected):
			response.Fail(c, response.ErrPaymentHoldFailed, "Refund failed, try again")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, nil)
}
