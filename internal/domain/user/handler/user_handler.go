package handler

import (
	"errors"
	"net/http"

	"groupbuy_backend/internal/domain/user/model"
	"groupbuy_backend/internal/domain/user/service"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(s service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

// GetProfile returns the caller's profile.
// @Summary Get profile
// @Tags User
// @Router /users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.service.GetUser(middleware.UserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrUserNotFound, "User not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, user)
}

// GetStats returns the loyalty widget read model.
// @Summary Get loyalty stats
// @Tags User
// @Router /users/me/stats [get]
func (h *UserHandler) GetStats(c *gin.Context) {
	progress, err := h.service.LevelProgress(middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, progress)
}

type CreateAddressInput struct {
	Title      string `json:"title" binding:"max=50"`
	City       string `json:"city" binding:"required,max=100"`
	Street     string `json:"street" binding:"required,max=200"`
	Building   string `json:"building" binding:"required,max=20"`
	Apartment  string `json:"apartment" binding:"max=20"`
	PostalCode string `json:"postal_code" binding:"max=10"`
	Comment    string `json:"comment" binding:"max=500"`
	IsDefault  bool   `json:"is_default"`
}

// CreateAddress stores a delivery address.
// @Summary Create address
// @Tags User
// @Router /users/me/addresses [post]
func (h *UserHandler) CreateAddress(c *gin.Context) {
	var input CreateAddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	address := &model.Address{
		UserID:     middleware.UserID(c),
		Title:      input.Title,
		City:       input.City,
		Street:     input.Street,
		Building:   input.Building,
		Apartment:  input.Apartment,
		PostalCode: input.PostalCode,
		Comment:    input.Comment,
		IsDefault:  input.IsDefault,
	}
	if err := h.service.CreateAddress(address); err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, address)
}

// ListAddresses returns the caller's saved addresses.
// @Summary List addresses
// @Tags User
// @Router /users/me/addresses [get]
func (h *UserHandler) ListAddresses(c *gin.Context) {
	addresses, err := h.service.ListAddresses(middleware.UserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, addresses)
}
