package handler

import (
	"errors"
	"net/http"

	"groupbuy_backend/internal/domain/group/repository"
	"groupbuy_backend/internal/domain/group/service"
	userModel "groupbuy_backend/internal/domain/user/model"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type GroupHandler struct {
	service service.GroupService
}

func NewGroupHandler(s service.GroupService) *GroupHandler {
	return &GroupHandler{service: s}
}

type CreateGroupInput struct {
	ProductID       string `json:"product_id" binding:"required,uuid"`
	MinParticipants int    `json:"min_participants" binding:"omitempty,min=2"`
	MaxParticipants int    `json:"max_participants" binding:"omitempty,min=2"`
	DeadlineDays    int    `json:"deadline_days" binding:"omitempty,min=1,max=30"`
}

// CreateGroup opens a buying round; the creator becomes the first member.
// @Summary Create group
// @Tags Group
// @Router /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var input CreateGroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	group, err := h.service.Create(middleware.UserID(c), service.CreateGroupInput{
		ProductID:       input.ProductID,
		MinParticipants: input.MinParticipants,
		MaxParticipants: input.MaxParticipants,
		DeadlineDays:    input.DeadlineDays,
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrProductNotFound, "Product not found")
		case errors.Is(err, service.ErrProductUnavailable):
			response.Error(c, http.StatusBadRequest, response.ErrProductInactive, "Product is not available")
		case errors.Is(err, service.ErrProductHasActive):
			response.Error(c, http.StatusConflict, response.ErrGroupHasActive, "Product already has an active group")
		case errors.Is(err, service.ErrBadLimits):
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid participant limits")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, group)
}

// GetGroup returns the group card with live pricing.
// @Summary Get group
// @Tags Group
// @Router /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	detail, err := h.service.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrGroupNotFound, "Group not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, detail)
}

// ListGroups returns groups for a product, optionally filtered by status.
// @Summary List groups
// @Tags Group
// @Router /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "product_id is required")
		return
	}
	groups, err := h.service.ListByProduct(productID, c.Query("status"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, groups)
}

// ListMyGroups returns the caller's memberships.
// @Summary List my groups
// @Tags Group
// @Router /my/groups [get]
func (h *GroupHandler) ListMyGroups(c *gin.Context) {
	groups, err := h.service.ListByUser(middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, groups)
}

// JoinGroup adds the caller as a member. Races resolve in the database;
// losing outcomes come back as in-flow failures the UI handles.
// @Summary Join group
// @Tags Group
// @Router /groups/{id}/join [post]
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	group, err := h.service.Join(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrGroupNotFound, "Group not found")
		case errors.Is(err, repository.ErrGroupNotActive):
			response.Fail(c, response.ErrGroupNotActive, "Group is no longer active")
		case errors.Is(err, repository.ErrGroupFull):
			response.Fail(c, response.ErrGroupFull, "Group is full")
		case errors.Is(err, repository.ErrAlreadyMember):
			response.Fail(c, response.ErrAlreadyMember, "Already a member of this group")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, group)
}

// LeaveGroup removes the caller's membership while the group is active.
// @Summary Leave group
// @Tags Group
// @Router /groups/{id}/leave [post]
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	err := h.service.Leave(c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGroupNotActive):
			response.Fail(c, response.ErrGroupNotActive, "Group is no longer active")
		case errors.Is(err, repository.ErrNotMember):
			response.Fail(c, response.ErrNotAMember, "Not a member of this group")
		case errors.Is(err, service.ErrMemberHasOrder):
			response.Fail(c, response.ErrMemberHasOrder, "Cancel your order before leaving the group")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, nil)
}

// CancelGroup cancels an active group. Creator or admin only.
// @Summary Cancel group
// @Tags Group
// @Router /groups/{id}/cancel [post]
func (h *GroupHandler) CancelGroup(c *gin.Context) {
	role, _ := c.Get("role")
	isAdmin := role == userModel.RoleAdmin

	err := h.service.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c), isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrGroupNotFound, "Group not found")
		case errors.Is(err, service.ErrNotCreator):
			response.Error(c, http.StatusForbidden, response.ErrNotGroupCreator, "Only the creator can cancel the group")
		case errors.Is(err, repository.ErrAlreadyResolved):
			response.Fail(c, response.ErrGroupNotActive, "Group is already resolved")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}
	response.Success(c, nil)
}
