package handler

import (
	"errors"
	"net/http"
	"strconv"

	"groupbuy_backend/internal/domain/catalog/model"
	"groupbuy_backend/internal/domain/catalog/service"
	"groupbuy_backend/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CatalogHandler struct {
	service service.CatalogService
}

func NewCatalogHandler(s service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: s}
}

type CreateProductInput struct {
	Name        string            `json:"name" binding:"required,min=1,max=200"`
	Description string            `json:"description" binding:"max=5000"`
	ImageURL    string            `json:"image_url"`
	BasePrice   float64           `json:"base_price" binding:"required,gt=0"`
	CategoryID  *string           `json:"category_id"`
	Stock       int               `json:"stock" binding:"gte=0"`
	PriceTiers  []model.PriceTier `json:"price_tiers"`
}

// CreateProduct adds a catalog item (admin only).
// @Summary Create product
// @Tags Catalog
// @Router /catalog/products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var input CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	product := &model.Product{
		Name:        input.Name,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		BasePrice:   input.BasePrice,
		CategoryID:  input.CategoryID,
		Stock:       input.Stock,
		IsActive:    true,
		PriceTiers:  input.PriceTiers,
	}

	if err := h.service.CreateProduct(product); err != nil {
		if errors.Is(err, service.ErrInvalidTiers) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidPriceTiers, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, product)
}

// GetProduct returns one product with derived price fields.
// @Summary Get product
// @Tags Catalog
// @Router /catalog/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.service.GetProduct(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrProductNotFound, "Product not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{
		"product":    product,
		"best_price": service.BestPrice(product.PriceTiers, product.BasePrice),
	})
}

// ListProducts returns the product feed.
// @Summary List products
// @Tags Catalog
// @Router /catalog/products [get]
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	categoryID := c.Query("category_id")

	products, total, err := h.service.ListProducts(categoryID, page, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": products,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ListCategories returns the category tree (flat).
// @Summary List categories
// @Tags Catalog
// @Router /catalog/categories [get]
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, categories)
}

func queryInt(c *gin.Context, key string, def int) int {
	if s := c.Query(key); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
